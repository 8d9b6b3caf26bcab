// Copyright 2026 The Sentra Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sentra-access/sentra/internal/authz"
	"github.com/sentra-access/sentra/internal/identity"
)

// CreateRoleRequest represents a custom role definition
type CreateRoleRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions []authz.Permission `json:"permissions"`
}

// CreateRole creates a custom role
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.authzService.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, role)
}

// GetRole retrieves a role by ID
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.authzService.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, role)
}

// ListRoles retrieves all roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.authzService.ListRoles(r.Context())
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// UpdateRoleRequest carries optional role mutations
type UpdateRoleRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Permissions []authz.Permission `json:"permissions"`
}

// UpdateRole updates a custom role
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.authzService.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), authz.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, role)
}

// DeleteRole deletes a custom role
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.authzService.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role deleted successfully",
	})
}

// AssignRoleRequest represents a grant of a role to a user
type AssignRoleRequest struct {
	UserID      string            `json:"user_id"`
	RoleID      string            `json:"role_id"`
	ScopeType   string            `json:"scope_type,omitempty"`
	ScopeID     string            `json:"scope_id,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// AssignRole grants a role to a user
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The assignment record itself carries no referential integrity; the
	// grant surface is where user and role must already exist.
	if req.UserID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}
	if _, err := h.identityService.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
		} else {
			respondError(w, http.StatusInternalServerError, "failed to resolve user")
		}
		return
	}
	if _, err := h.authzService.GetRole(r.Context(), req.RoleID); err != nil {
		respondAuthzError(w, err)
		return
	}

	assignment, err := h.authzService.AssignRole(r.Context(), authz.AssignRoleInput{
		UserID:      req.UserID,
		RoleID:      req.RoleID,
		ScopeType:   authz.ResourceType(req.ScopeType),
		ScopeID:     req.ScopeID,
		Constraints: req.Constraints,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   GetUserID(r.Context()),
	})
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, assignment)
}

// GetAssignment retrieves an assignment by ID
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.authzService.GetAssignment(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

// UpdateAssignmentRequest carries the mutable assignment fields
type UpdateAssignmentRequest struct {
	ScopeType   *string           `json:"scope_type"`
	ScopeID     *string           `json:"scope_id"`
	Constraints map[string]string `json:"constraints"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	ClearExpiry bool              `json:"clear_expiry"`
}

// UpdateAssignment mutates an assignment's scope, constraints, or expiry
func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req UpdateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := authz.AssignmentUpdate{
		ScopeID:     req.ScopeID,
		Constraints: req.Constraints,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	}
	if req.ScopeType != nil {
		scopeType := authz.ResourceType(*req.ScopeType)
		upd.ScopeType = &scopeType
	}

	assignment, err := h.authzService.UpdateAssignment(r.Context(), chi.URLParam(r, "assignmentID"), upd)
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

// RemoveAssignment revokes a role grant
func (h *Handler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.authzService.RemoveAssignment(r.Context(), chi.URLParam(r, "assignmentID")); err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "assignment removed successfully",
	})
}

// ListUserAssignments retrieves all assignments for a user
func (h *Handler) ListUserAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.authzService.ListAssignments(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

// respondAuthzError maps authorization domain errors onto HTTP statuses
func respondAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrRoleNotFound):
		respondError(w, http.StatusNotFound, "role not found")
	case errors.Is(err, authz.ErrAssignmentNotFound):
		respondError(w, http.StatusNotFound, "assignment not found")
	case errors.Is(err, authz.ErrSystemRoleImmutable):
		respondError(w, http.StatusForbidden, "system roles cannot be modified")
	case errors.Is(err, authz.ErrRoleAlreadyExists):
		respondError(w, http.StatusConflict, "role already exists")
	case errors.Is(err, authz.ErrValidation), errors.Is(err, authz.ErrInvalidPermission):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
