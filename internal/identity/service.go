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

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/id"
)

// Service provides identity-related business logic
type Service struct {
	repo        UserRepository
	hasher      *PasswordHasher
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new identity service
func NewService(repo UserRepository, hasher *PasswordHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// ProvisionUser creates a new user. Users start active and without the
// system-admin override; both are separate explicit mutations.
func (s *Service) ProvisionUser(ctx context.Context, email, name, department string) (*User, error) {
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}

	now := s.now()
	user := &User{
		ID:         id.NewUUIDv7(),
		Email:      email,
		Name:       name,
		Department: department,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  audit.ActorSystem,
		Resource: user.ID,
		Metadata: map[string]any{audit.AttrEmail: email},
	})

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(email)
}

// ListUsers retrieves all users
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.repo.List()
}

// UserUpdate carries optional profile mutations; nil fields are left as-is.
type UserUpdate struct {
	Name       *string
	Department *string
}

// UpdateUser applies profile mutations and bumps UpdatedAt.
func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Department != nil {
		user.Department = *upd.Department
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// SetActive toggles the active flag. Deactivation does not revoke
// assignments; the evaluation engine denies inactive non-admin users
// regardless of what they hold.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) (*User, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	user.IsActive = active
	user.UpdatedAt = s.now()
	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if !active {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeUserDeactivated,
			ActorID:  audit.ActorSystem,
			Resource: userID,
		})
	}
	return user, nil
}

// SetSystemAdmin toggles the system-admin override flag.
func (s *Service) SetSystemAdmin(ctx context.Context, userID string, admin bool) (*User, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	user.IsSystemAdmin = admin
	user.UpdatedAt = s.now()
	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes a user record.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.repo.GetByID(userID); err != nil {
		return ErrUserNotFound
	}
	return s.repo.Delete(userID)
}

// AddPassword adds a password credential to an existing user
func (s *Service) AddPassword(ctx context.Context, userID, password string) error {
	if !isStrongPassword(password) {
		return ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.AddCredentials(&Credentials{
		UserID:       userID,
		PasswordHash: passwordHash,
	}); err != nil {
		return fmt.Errorf("failed to add credentials: %w", err)
	}

	return nil
}

// Authenticate authenticates a user with email and password and stamps the
// last-login time on success. Inactive users cannot log in even though a
// system admin among them would still pass permission checks.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "user_inactive"},
		})
		return nil, ErrUserInactive
	}

	credentials, err := s.repo.GetCredentials(user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "invalid_password"},
		})
		return nil, ErrInvalidCredentials
	}

	loginAt := s.now()
	if err := s.repo.UpdateLastLogin(user.ID, loginAt); err == nil {
		user.LastLogin = &loginAt
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: "login",
	})

	return user, nil
}

// ChangePassword changes user password after verifying the old one
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	credentials, err := s.repo.GetCredentials(userID)
	if err != nil {
		return ErrUserNotFound
	}

	valid, err := s.hasher.Verify(oldPassword, credentials.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	if !isStrongPassword(newPassword) {
		return ErrWeakPassword
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdatePassword(userID, newHash)
}

// Helper functions
func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && len(email) < 255
}

func isStrongPassword(password string) bool {
	return len(password) >= 8
}
