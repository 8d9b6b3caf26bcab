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
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserInactive       = errors.New("user is deactivated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet minimum requirements")
)

// User is an authorization subject. IsSystemAdmin is an absolute override
// honored by the evaluation engine; IsActive gates every non-admin decision.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Department    string     `json:"department,omitempty"`
	IsActive      bool       `json:"is_active"`
	IsSystemAdmin bool       `json:"is_system_admin"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// Credentials holds a user's password hash, stored separately from the
// profile record.
type Credentials struct {
	UserID       string
	PasswordHash string
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user
	Create(user *User) error

	// GetByID retrieves a user by ID
	GetByID(id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(email string) (*User, error)

	// Update updates user information
	Update(user *User) error

	// Delete deletes a user
	Delete(id string) error

	// List retrieves all users
	List() ([]*User, error)

	// AddCredentials stores a password credential for a user
	AddCredentials(credentials *Credentials) error

	// GetCredentials retrieves a user's password credential
	GetCredentials(userID string) (*Credentials, error)

	// UpdatePassword replaces a user's password hash
	UpdatePassword(userID, passwordHash string) error

	// UpdateLastLogin stamps the user's last successful login
	UpdateLastLogin(userID string, at time.Time) error
}
