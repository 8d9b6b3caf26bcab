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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sentra-access/sentra/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(user *identity.User) error {
	ctx := context.Background()

	var lastLogin sql.NullTime
	if user.LastLogin != nil {
		lastLogin = sql.NullTime{Time: *user.LastLogin, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, name, department, is_active, is_system_admin,
			created_at, updated_at, last_login
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID, user.Email, user.Name, user.Department, user.IsActive,
		user.IsSystemAdmin, user.CreatedAt, user.UpdatedAt, lastLogin,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id string) (*identity.User, error) {
	return r.getOne(`WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*identity.User, error) {
	return r.getOne(`WHERE email = $1`, email)
}

func (r *UserRepository) getOne(where string, arg any) (*identity.User, error) {
	ctx := context.Background()

	var user identity.User
	var lastLogin sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, email, name, department, is_active, is_system_admin,
		       created_at, updated_at, last_login
		FROM users `+where,
		arg,
	).Scan(
		&user.ID, &user.Email, &user.Name, &user.Department, &user.IsActive,
		&user.IsSystemAdmin, &user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

// Update updates user information
func (r *UserRepository) Update(user *identity.User) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, name = $3, department = $4, is_active = $5,
		    is_system_admin = $6, updated_at = $7
		WHERE id = $1
	`,
		user.ID, user.Email, user.Name, user.Department, user.IsActive,
		user.IsSystemAdmin, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// Delete deletes a user
func (r *UserRepository) Delete(id string) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// List retrieves all users
func (r *UserRepository) List() ([]*identity.User, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, email, name, department, is_active, is_system_admin,
		       created_at, updated_at, last_login
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		var user identity.User
		var lastLogin sql.NullTime
		if err := rows.Scan(
			&user.ID, &user.Email, &user.Name, &user.Department, &user.IsActive,
			&user.IsSystemAdmin, &user.CreatedAt, &user.UpdatedAt, &lastLogin,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if lastLogin.Valid {
			user.LastLogin = &lastLogin.Time
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// AddCredentials stores a password credential for a user
func (r *UserRepository) AddCredentials(credentials *identity.Credentials) error {
	ctx := context.Background()

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_credentials (user_id, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, credentials.UserID, credentials.PasswordHash)

	if err != nil {
		return fmt.Errorf("failed to add credentials: %w", err)
	}
	return nil
}

// GetCredentials retrieves a user's password credential
func (r *UserRepository) GetCredentials(userID string) (*identity.Credentials, error) {
	ctx := context.Background()

	var credentials identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash FROM user_credentials WHERE user_id = $1
	`, userID).Scan(&credentials.UserID, &credentials.PasswordHash)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &credentials, nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(userID, passwordHash string) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE user_credentials SET password_hash = $2 WHERE user_id = $1
	`, userID, passwordHash)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login
func (r *UserRepository) UpdateLastLogin(userID string, at time.Time) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, userID, at)

	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}
