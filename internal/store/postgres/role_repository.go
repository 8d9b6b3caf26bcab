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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sentra-access/sentra/internal/authz"
)

// RoleRepository implements authz.RoleRepository. Permissions are stored as
// a JSONB document to keep the permission list ordered and atomic with the
// role row (single-statement updates give last-writer-wins per record).
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create creates a new role
func (r *RoleRepository) Create(role *authz.Role) error {
	ctx := context.Background()

	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, permissions, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		role.ID, role.Name, role.Description, permissions, role.IsSystemRole,
		role.CreatedAt, role.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(id string) (*authz.Role, error) {
	return r.getOne(`WHERE id = $1`, id)
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(name string) (*authz.Role, error) {
	return r.getOne(`WHERE name = $1`, name)
}

func (r *RoleRepository) getOne(where string, arg any) (*authz.Role, error) {
	ctx := context.Background()

	var role authz.Role
	var permissions []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, permissions, is_system_role, created_at, updated_at
		FROM roles `+where,
		arg,
	).Scan(
		&role.ID, &role.Name, &role.Description, &permissions,
		&role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return &role, nil
}

// Update replaces stored role fields
func (r *RoleRepository) Update(role *authz.Role) error {
	ctx := context.Background()

	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles
		SET name = $2, description = $3, permissions = $4, updated_at = $5
		WHERE id = $1
	`,
		role.ID, role.Name, role.Description, permissions, role.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// Delete deletes a role
func (r *RoleRepository) Delete(id string) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// List retrieves all roles
func (r *RoleRepository) List() ([]*authz.Role, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, permissions, is_system_role, created_at, updated_at
		FROM roles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.Role
	for rows.Next() {
		var role authz.Role
		var permissions []byte
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Description, &permissions,
			&role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}
