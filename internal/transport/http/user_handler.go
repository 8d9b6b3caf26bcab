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

	"github.com/go-chi/chi/v5"
	"github.com/sentra-access/sentra/internal/identity"
)

// ProvisionUserRequest represents user creation data
type ProvisionUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Password   string `json:"password,omitempty"`
}

// ProvisionUser creates a new user, optionally with an initial password
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req ProvisionUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.ProvisionUser(r.Context(), req.Email, req.Name, req.Department)
	if err != nil {
		respondIdentityError(w, err)
		return
	}

	if req.Password != "" {
		if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
			respondIdentityError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetUser retrieves a user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondIdentityError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// ListUsers retrieves all users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identityService.ListUsers(r.Context())
	if err != nil {
		respondIdentityError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateUserRequest carries optional user mutations
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
}

// UpdateUser updates a user's profile fields
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.UpdateUser(r.Context(), chi.URLParam(r, "userID"), identity.UserUpdate{
		Name:       req.Name,
		Department: req.Department,
	})
	if err != nil {
		respondIdentityError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// SetUserActiveRequest toggles a user's active flag
type SetUserActiveRequest struct {
	Active bool `json:"active"`
}

// SetUserActive activates or deactivates a user
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req SetUserActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.SetActive(r.Context(), chi.URLParam(r, "userID"), req.Active)
	if err != nil {
		respondIdentityError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.identityService.DeleteUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		respondIdentityError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "user deleted successfully",
	})
}

// respondIdentityError maps identity domain errors onto HTTP statuses
func respondIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, identity.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, identity.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, identity.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, "password does not meet security requirements")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
