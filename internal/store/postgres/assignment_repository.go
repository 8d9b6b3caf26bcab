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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sentra-access/sentra/internal/authz"
)

// AssignmentRepository implements authz.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create creates a new assignment
func (r *AssignmentRepository) Create(assignment *authz.RoleAssignment) error {
	ctx := context.Background()

	scopeType, scopeID := scopeColumns(assignment)
	constraints, err := constraintsColumn(assignment)
	if err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if assignment.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *assignment.ExpiresAt, Valid: true}
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO role_assignments (
			id, user_id, role_id, scope_type, scope_id, constraints,
			created_at, expires_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		assignment.ID, assignment.UserID, assignment.RoleID, scopeType, scopeID,
		constraints, assignment.CreatedAt, expiresAt, assignment.CreatedBy,
	)

	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(id string) (*authz.RoleAssignment, error) {
	ctx := context.Background()

	row := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, constraints,
		       created_at, expires_at, created_by
		FROM role_assignments
		WHERE id = $1
	`, id)

	assignment, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

// Update replaces mutable assignment fields. UserID and RoleID are not part
// of the statement: they are immutable once created.
func (r *AssignmentRepository) Update(assignment *authz.RoleAssignment) error {
	ctx := context.Background()

	scopeType, scopeID := scopeColumns(assignment)
	constraints, err := constraintsColumn(assignment)
	if err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if assignment.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *assignment.ExpiresAt, Valid: true}
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_assignments
		SET scope_type = $2, scope_id = $3, constraints = $4, expires_at = $5
		WHERE id = $1
	`,
		assignment.ID, scopeType, scopeID, constraints, expiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrAssignmentNotFound
	}
	return nil
}

// Delete hard-deletes an assignment
func (r *AssignmentRepository) Delete(id string) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `DELETE FROM role_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrAssignmentNotFound
	}
	return nil
}

// ListForUser retrieves all assignments for a user, expired included:
// expiry is an evaluation-time decision, not a storage filter.
func (r *AssignmentRepository) ListForUser(userID string) ([]*authz.RoleAssignment, error) {
	return r.list(`WHERE user_id = $1`, userID)
}

// ListForRole retrieves all assignments referencing a role
func (r *AssignmentRepository) ListForRole(roleID string) ([]*authz.RoleAssignment, error) {
	return r.list(`WHERE role_id = $1`, roleID)
}

func (r *AssignmentRepository) list(where string, arg any) ([]*authz.RoleAssignment, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role_id, scope_type, scope_id, constraints,
		       created_at, expires_at, created_by
		FROM role_assignments `+where+`
		ORDER BY id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.RoleAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func scopeColumns(assignment *authz.RoleAssignment) (sql.NullString, sql.NullString) {
	var scopeType, scopeID sql.NullString
	if assignment.ScopeType != "" {
		scopeType = sql.NullString{String: string(assignment.ScopeType), Valid: true}
	}
	if assignment.ScopeID != "" {
		scopeID = sql.NullString{String: assignment.ScopeID, Valid: true}
	}
	return scopeType, scopeID
}

func constraintsColumn(assignment *authz.RoleAssignment) ([]byte, error) {
	if assignment.Constraints == nil {
		return nil, nil
	}
	constraints, err := json.Marshal(assignment.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}
	return constraints, nil
}

func scanAssignment(row pgx.Row) (*authz.RoleAssignment, error) {
	var assignment authz.RoleAssignment
	var scopeType, scopeID sql.NullString
	var constraints []byte
	var expiresAt sql.NullTime

	if err := row.Scan(
		&assignment.ID, &assignment.UserID, &assignment.RoleID,
		&scopeType, &scopeID, &constraints,
		&assignment.CreatedAt, &expiresAt, &assignment.CreatedBy,
	); err != nil {
		return nil, err
	}

	if scopeType.Valid {
		assignment.ScopeType = authz.ResourceType(scopeType.String)
	}
	if scopeID.Valid {
		assignment.ScopeID = scopeID.String
	}
	if len(constraints) > 0 {
		if err := json.Unmarshal(constraints, &assignment.Constraints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal constraints: %w", err)
		}
	}
	if expiresAt.Valid {
		assignment.ExpiresAt = &expiresAt.Time
	}
	return &assignment, nil
}
