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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sentra-access/sentra/internal/credential"
)

// CredentialRepository implements credential.Repository
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create creates a new credential
func (r *CredentialRepository) Create(cred *credential.Credential) error {
	ctx := context.Background()

	scopes, metadata, err := credentialColumns(cred)
	if err != nil {
		return err
	}

	var lastUsedAt, revokedAt sql.NullTime
	if cred.LastUsedAt != nil {
		lastUsedAt = sql.NullTime{Time: *cred.LastUsedAt, Valid: true}
	}
	if cred.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *cred.RevokedAt, Valid: true}
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO credentials (
			id, name, credential_type, token_hash, scopes, status,
			created_at, expires_at, last_used_at, created_by,
			revoked_at, revoked_by, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		cred.ID, cred.Name, cred.Type, cred.TokenHash, scopes, cred.Status,
		cred.CreatedAt, cred.ExpiresAt, lastUsedAt, cred.CreatedBy,
		revokedAt, cred.RevokedBy, metadata,
	)

	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByID retrieves a credential by ID
func (r *CredentialRepository) GetByID(id string) (*credential.Credential, error) {
	return r.getOne(`WHERE id = $1`, id)
}

// GetByTokenHash retrieves a credential by its token hash
func (r *CredentialRepository) GetByTokenHash(tokenHash string) (*credential.Credential, error) {
	return r.getOne(`WHERE token_hash = $1`, tokenHash)
}

func (r *CredentialRepository) getOne(where string, arg any) (*credential.Credential, error) {
	ctx := context.Background()

	row := r.db.pool.QueryRow(ctx, `
		SELECT id, name, credential_type, token_hash, scopes, status,
		       created_at, expires_at, last_used_at, created_by,
		       revoked_at, revoked_by, metadata
		FROM credentials `+where, arg)

	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// Update replaces stored credential fields. The token hash is written as
// inserted and never rotated, so it is excluded from the statement.
func (r *CredentialRepository) Update(cred *credential.Credential) error {
	ctx := context.Background()

	scopes, metadata, err := credentialColumns(cred)
	if err != nil {
		return err
	}

	var lastUsedAt, revokedAt sql.NullTime
	if cred.LastUsedAt != nil {
		lastUsedAt = sql.NullTime{Time: *cred.LastUsedAt, Valid: true}
	}
	if cred.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *cred.RevokedAt, Valid: true}
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials
		SET name = $2, scopes = $3, status = $4, expires_at = $5,
		    last_used_at = $6, revoked_at = $7, revoked_by = $8, metadata = $9
		WHERE id = $1
	`,
		cred.ID, cred.Name, scopes, cred.Status, cred.ExpiresAt,
		lastUsedAt, revokedAt, cred.RevokedBy, metadata,
	)

	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return credential.ErrCredentialNotFound
	}
	return nil
}

// UpdateLastUsed stamps the last validation time
func (r *CredentialRepository) UpdateLastUsed(id string, at time.Time) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET last_used_at = $2 WHERE id = $1
	`, id, at)

	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return credential.ErrCredentialNotFound
	}
	return nil
}

// List retrieves all credentials
func (r *CredentialRepository) List() ([]*credential.Credential, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, credential_type, token_hash, scopes, status,
		       created_at, expires_at, last_used_at, created_by,
		       revoked_at, revoked_by, metadata
		FROM credentials
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*credential.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, cred)
	}
	return credentials, rows.Err()
}

// DeleteExpired removes credentials whose lifetime passed before the given
// instant and returns the number removed
func (r *CredentialRepository) DeleteExpired(before time.Time) (int64, error) {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM credentials WHERE expires_at < $1
	`, before)

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired credentials: %w", err)
	}
	return result.RowsAffected(), nil
}

func credentialColumns(cred *credential.Credential) ([]byte, []byte, error) {
	scopes, err := json.Marshal(cred.Scopes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal scopes: %w", err)
	}
	metadata, err := json.Marshal(cred.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return scopes, metadata, nil
}

func scanCredential(row pgx.Row) (*credential.Credential, error) {
	var cred credential.Credential
	var scopes, metadata []byte
	var lastUsedAt, revokedAt sql.NullTime
	var revokedBy sql.NullString

	if err := row.Scan(
		&cred.ID, &cred.Name, &cred.Type, &cred.TokenHash, &scopes, &cred.Status,
		&cred.CreatedAt, &cred.ExpiresAt, &lastUsedAt, &cred.CreatedBy,
		&revokedAt, &revokedBy, &metadata,
	); err != nil {
		return nil, err
	}

	if len(scopes) > 0 {
		if err := json.Unmarshal(scopes, &cred.Scopes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cred.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if lastUsedAt.Valid {
		cred.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		cred.RevokedAt = &revokedAt.Time
	}
	if revokedBy.Valid {
		cred.RevokedBy = revokedBy.String
	}
	return &cred, nil
}
