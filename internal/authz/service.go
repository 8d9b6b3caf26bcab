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

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/id"
	"github.com/sentra-access/sentra/internal/identity"
)

// Service provides role and assignment management plus store-backed
// authorization checks on top of the pure evaluation function.
type Service struct {
	roleRepo       RoleRepository
	assignmentRepo AssignmentRepository
	auditLogger    audit.Logger
	now            func() time.Time
}

// NewService creates a new authorization service
func NewService(roleRepo RoleRepository, assignmentRepo AssignmentRepository, auditLogger audit.Logger) *Service {
	return &Service{
		roleRepo:       roleRepo,
		assignmentRepo: assignmentRepo,
		auditLogger:    auditLogger,
		now:            time.Now,
	}
}

// SeedSystemRoles (re)creates the built-in role catalog. Safe to run on
// every boot: existing system roles get their permissions refreshed in
// place, custom roles are never touched.
func (s *Service) SeedSystemRoles(ctx context.Context) error {
	for _, role := range SystemRoleCatalog(s.now()) {
		existing, err := s.roleRepo.GetByID(role.ID)
		if err != nil {
			if !errors.Is(err, ErrRoleNotFound) {
				return fmt.Errorf("failed to look up system role %s: %w", role.ID, err)
			}
			if err := s.roleRepo.Create(role); err != nil {
				return fmt.Errorf("failed to seed system role %s: %w", role.ID, err)
			}
			continue
		}

		// Keep the stored catalog aligned with the compiled one; preserve
		// the original creation time.
		role.CreatedAt = existing.CreatedAt
		if err := s.roleRepo.Update(role); err != nil {
			return fmt.Errorf("failed to refresh system role %s: %w", role.ID, err)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSystemRolesSeeded,
		ActorID:  audit.ActorSystem,
		Resource: "roles",
	})
	return nil
}

// CreateRole creates a custom role with a fresh id.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissions []Permission) (*Role, error) {
	if name == "" {
		return nil, errors.Join(ErrValidation, errors.New("role name is required"))
	}
	for _, p := range permissions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	now := s.now()
	role := &Role{
		ID:          id.NewUUIDv7(),
		Name:        name,
		Description: description,
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.roleRepo.Create(role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  audit.ActorSystem,
		Resource: role.ID,
		Metadata: map[string]any{"name": name},
	})
	return role, nil
}

// GetRole retrieves a role by ID
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.roleRepo.GetByID(roleID)
}

// ListRoles retrieves all roles
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roleRepo.List()
}

// RoleUpdate carries optional role mutations; nil fields are left as-is.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []Permission
}

// UpdateRole replaces the given fields and bumps UpdatedAt. System roles
// always reject the update.
func (s *Service) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (*Role, error) {
	role, err := s.roleRepo.GetByID(roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystemRole {
		return nil, ErrSystemRoleImmutable
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, errors.Join(ErrValidation, errors.New("role name is required"))
		}
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if upd.Permissions != nil {
		for _, p := range upd.Permissions {
			if err := p.Validate(); err != nil {
				return nil, err
			}
		}
		role.Permissions = upd.Permissions
	}
	role.UpdatedAt = s.now()

	if err := s.roleRepo.Update(role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		ActorID:  audit.ActorSystem,
		Resource: roleID,
	})
	return role, nil
}

// DeleteRole deletes a custom role. System roles always reject the delete.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.roleRepo.GetByID(roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRoleImmutable
	}

	if err := s.roleRepo.Delete(roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  audit.ActorSystem,
		Resource: roleID,
	})
	return nil
}

// AssignRoleInput describes a grant. CreatedBy records the granting actor.
type AssignRoleInput struct {
	UserID      string
	RoleID      string
	ScopeType   ResourceType
	ScopeID     string
	Constraints map[string]string
	ExpiresAt   *time.Time
	CreatedBy   string
}

// AssignRole records a user→role edge. The record itself performs no
// existence check on user or role; dangling references degrade gracefully
// at evaluation time. Callers that want hard guarantees check first.
func (s *Service) AssignRole(ctx context.Context, in AssignRoleInput) (*RoleAssignment, error) {
	if in.UserID == "" || in.RoleID == "" {
		return nil, errors.Join(ErrValidation, errors.New("user_id and role_id are required"))
	}
	if in.ScopeType != "" && !in.ScopeType.Valid() {
		return nil, errors.Join(ErrValidation, errors.New("unknown scope type: "+string(in.ScopeType)))
	}
	if in.ScopeID != "" && in.ScopeType == "" {
		return nil, errors.Join(ErrValidation, errors.New("scope_id requires scope_type"))
	}

	assignment := &RoleAssignment{
		ID:          id.NewUUIDv7(),
		UserID:      in.UserID,
		RoleID:      in.RoleID,
		ScopeType:   in.ScopeType,
		ScopeID:     in.ScopeID,
		Constraints: in.Constraints,
		CreatedAt:   s.now(),
		ExpiresAt:   in.ExpiresAt,
		CreatedBy:   in.CreatedBy,
	}

	if err := s.assignmentRepo.Create(assignment); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  in.CreatedBy,
		Resource: in.UserID,
		Metadata: map[string]any{audit.AttrRoleID: in.RoleID},
	})
	return assignment, nil
}

// GetAssignment retrieves an assignment by ID
func (s *Service) GetAssignment(ctx context.Context, assignmentID string) (*RoleAssignment, error) {
	return s.assignmentRepo.GetByID(assignmentID)
}

// ListAssignments retrieves all assignments for a user, expired included.
func (s *Service) ListAssignments(ctx context.Context, userID string) ([]*RoleAssignment, error) {
	return s.assignmentRepo.ListForUser(userID)
}

// AssignmentUpdate carries the mutable assignment fields. UserID and RoleID
// are immutable once created: to reassign, revoke and recreate.
type AssignmentUpdate struct {
	ScopeType   *ResourceType
	ScopeID     *string
	Constraints map[string]string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// UpdateAssignment mutates scope, constraints, and expiry only.
func (s *Service) UpdateAssignment(ctx context.Context, assignmentID string, upd AssignmentUpdate) (*RoleAssignment, error) {
	assignment, err := s.assignmentRepo.GetByID(assignmentID)
	if err != nil {
		return nil, err
	}

	if upd.ScopeType != nil {
		if *upd.ScopeType != "" && !upd.ScopeType.Valid() {
			return nil, errors.Join(ErrValidation, errors.New("unknown scope type: "+string(*upd.ScopeType)))
		}
		assignment.ScopeType = *upd.ScopeType
	}
	if upd.ScopeID != nil {
		assignment.ScopeID = *upd.ScopeID
	}
	if upd.Constraints != nil {
		assignment.Constraints = upd.Constraints
	}
	if upd.ClearExpiry {
		assignment.ExpiresAt = nil
	} else if upd.ExpiresAt != nil {
		assignment.ExpiresAt = upd.ExpiresAt
	}

	if err := s.assignmentRepo.Update(assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	return assignment, nil
}

// RemoveAssignment hard-deletes an assignment. Distinct from expiry, which
// is lazy and leaves the record in place.
func (s *Service) RemoveAssignment(ctx context.Context, assignmentID string) error {
	assignment, err := s.assignmentRepo.GetByID(assignmentID)
	if err != nil {
		return err
	}

	if err := s.assignmentRepo.Delete(assignmentID); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUnassigned,
		ActorID:  audit.ActorSystem,
		Resource: assignment.UserID,
		Metadata: map[string]any{audit.AttrRoleID: assignment.RoleID},
	})
	return nil
}

// CheckAccess loads the user's assignment and role snapshot from the store
// and evaluates the request against it. The snapshot is read once per
// decision; nothing is cached across decisions.
func (s *Service) CheckAccess(ctx context.Context, user *identity.User, req CheckRequest) (bool, error) {
	assignments, err := s.assignmentRepo.ListForUser(user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load assignments: %w", err)
	}

	rolesByID := make(map[string]*Role, len(assignments))
	for _, assignment := range assignments {
		if _, seen := rolesByID[assignment.RoleID]; seen {
			continue
		}
		role, err := s.roleRepo.GetByID(assignment.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue // dangling reference, engine skips it anyway
			}
			return false, fmt.Errorf("failed to load role %s: %w", assignment.RoleID, err)
		}
		rolesByID[assignment.RoleID] = role
	}

	return HasPermission(user, assignments, rolesByID, req, s.now()), nil
}
