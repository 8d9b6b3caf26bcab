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

package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/id"
)

// Service issues, validates, revokes, and garbage-collects credentials.
// All expiry decisions compare the injected clock against expires_at at
// call time; there is no background status writer.
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	signer      *TokenSigner
	now         func() time.Time
}

// NewService creates a new credential service. signer may be nil, in which
// case access_token credentials are issued as opaque strings like every
// other type.
func NewService(repo Repository, auditLogger audit.Logger, signer *TokenSigner) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		signer:      signer,
		now:         time.Now,
	}
}

// CreateInput describes a credential to issue.
type CreateInput struct {
	Name       string
	Type       Type
	Scopes     []string
	TTLSeconds int
	Metadata   Metadata
	CreatedBy  string
}

// Create issues a new credential. The returned string is the raw token
// value; it is not stored and cannot be recovered afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Credential, string, error) {
	if in.Name == "" {
		return nil, "", errors.Join(ErrValidation, errors.New("credential name is required"))
	}
	if !in.Type.Valid() {
		return nil, "", errors.Join(ErrValidation, errors.New("unknown credential type: "+string(in.Type)))
	}
	ttl := time.Duration(in.TTLSeconds) * time.Second
	if ttl < MinTTL || ttl > MaxTTL {
		return nil, "", errors.Join(ErrValidation,
			fmt.Errorf("ttl_seconds must be within [%d, %d]", int(MinTTL.Seconds()), int(MaxTTL.Seconds())))
	}

	now := s.now()
	cred := &Credential{
		ID:        id.NewUUIDv7(),
		Name:      in.Name,
		Type:      in.Type,
		Scopes:    append([]string(nil), in.Scopes...),
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		CreatedBy: in.CreatedBy,
		Metadata:  in.Metadata,
	}

	var token string
	if in.Type == TypeAccessToken && s.signer != nil {
		signed, err := s.signer.Sign(cred)
		if err != nil {
			return nil, "", fmt.Errorf("failed to sign access token: %w", err)
		}
		token = signed
	} else {
		token = generateToken()
	}
	cred.TokenHash = hashToken(token)

	if err := s.repo.Create(cred); err != nil {
		return nil, "", fmt.Errorf("failed to store credential: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialIssued,
		ActorID:  in.CreatedBy,
		Resource: cred.ID,
		Metadata: map[string]any{
			"credential_type": string(in.Type),
			audit.AttrScopes:  cred.Scopes,
		},
	})

	return cred, token, nil
}

// ValidationResult is the structured outcome of validating a token. It is
// total over any input string: lookups of unknown, expired, or revoked
// tokens produce an invalid result with a reason, never an error.
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	CredentialID string     `json:"credential_id,omitempty"`
	SubjectID    string     `json:"subject_id,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Validation failure reasons. Kept internal-facing: the HTTP layer maps all
// of them onto the same external response.
const (
	ReasonNotFound          = "token not found"
	ReasonExpired           = "credential expired"
	ReasonRevoked           = "credential revoked"
	ReasonNotActive         = "credential not active"
	ReasonInsufficientScope = "insufficient scope"
)

// Validate resolves a raw token to its credential and checks it against the
// required scopes. A successful validation stamps last_used_at but never
// extends expires_at: there is no sliding expiry.
func (s *Service) Validate(ctx context.Context, tokenValue string, requiredScopes []string) ValidationResult {
	if tokenValue == "" {
		return ValidationResult{Valid: false, Reason: ReasonNotFound}
	}

	cred, err := s.repo.GetByTokenHash(hashToken(tokenValue))
	if err != nil {
		return ValidationResult{Valid: false, Reason: ReasonNotFound}
	}

	now := s.now()
	switch cred.EffectiveStatus(now) {
	case StatusActive:
		// usable
	case StatusRevoked:
		return ValidationResult{Valid: false, Reason: ReasonRevoked}
	case StatusExpired:
		return ValidationResult{Valid: false, Reason: ReasonExpired}
	default:
		return ValidationResult{Valid: false, Reason: ReasonNotActive}
	}

	if !cred.HasScopes(requiredScopes) {
		return ValidationResult{Valid: false, Reason: ReasonInsufficientScope}
	}

	// Observable side effect of validation; best effort.
	_ = s.repo.UpdateLastUsed(cred.ID, now)

	expiresAt := cred.ExpiresAt
	return ValidationResult{
		Valid:        true,
		CredentialID: cred.ID,
		SubjectID:    cred.subjectID(),
		Scopes:       cred.Scopes,
		ExpiresAt:    &expiresAt,
	}
}

// subjectID resolves the credential's bound subject: a user for interactive
// and API credentials, a service for service tokens.
func (c *Credential) subjectID() string {
	if c.Metadata.UserID != "" {
		return c.Metadata.UserID
	}
	return c.Metadata.ServiceID
}

// Get retrieves a credential by ID
func (s *Service) Get(ctx context.Context, credentialID string) (*Credential, error) {
	return s.repo.GetByID(credentialID)
}

// Revoke marks a credential revoked. Idempotent: the outcome depends only
// on whether the id exists. Exactly one revocation is recorded; revoking an
// already-revoked or already-expired credential changes nothing.
func (s *Service) Revoke(ctx context.Context, credentialID, revokedBy, reason string) error {
	cred, err := s.repo.GetByID(credentialID)
	if err != nil {
		return err
	}

	if cred.Status == StatusRevoked {
		return nil
	}

	now := s.now()
	cred.Status = StatusRevoked
	cred.RevokedAt = &now
	cred.RevokedBy = revokedBy
	if err := s.repo.Update(cred); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialRevoked,
		ActorID:  revokedBy,
		Resource: credentialID,
		Metadata: map[string]any{audit.AttrReason: reason},
	})
	return nil
}

// List retrieves credentials, filtering lazily: expiry is computed from the
// clock at call time, not from the stored status field, so long-idle
// records are reported correctly.
func (s *Service) List(ctx context.Context, includeExpired, includeRevoked bool) ([]*Credential, error) {
	all, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*Credential, 0, len(all))
	for _, cred := range all {
		switch cred.EffectiveStatus(now) {
		case StatusExpired:
			if !includeExpired {
				continue
			}
		case StatusRevoked:
			if !includeRevoked {
				continue
			}
		}
		out = append(out, cred)
	}
	return out, nil
}

// CleanupExpired physically deletes credentials past their lifetime. Safe
// to run repeatedly and concurrently with in-flight validations: a
// credential expiring mid-validation is rejected by the same time check,
// and a second sweep over the same records removes nothing.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired credentials: %w", err)
	}
	return removed, nil
}

// Helper functions

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
