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
	"errors"
	"time"
)

// Domain errors
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrValidation         = errors.New("validation failed")
)

// TTL bounds enforced at issuance.
const (
	MinTTL = 60 * time.Second
	MaxTTL = 7 * 24 * time.Hour
)

// Type classifies a credential by its intended consumer.
type Type string

const (
	TypeAPIKey       Type = "api_key"
	TypeAccessToken  Type = "access_token"
	TypeRefreshToken Type = "refresh_token"
	TypeSessionToken Type = "session_token"
	TypeServiceToken Type = "service_token"
)

// Valid reports whether t is a known credential type.
func (t Type) Valid() bool {
	switch t {
	case TypeAPIKey, TypeAccessToken, TypeRefreshToken, TypeSessionToken, TypeServiceToken:
		return true
	}
	return false
}

// Status is the stored lifecycle state. Transitions are monotone:
// active→expired is time-driven and detected lazily, active→revoked is
// explicit and permanent. Pending is reserved for not-yet-activated
// credentials; issuance never produces it.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
	StatusPending Status = "pending"
)

// Metadata carries issuance context for audit and lookup purposes.
type Metadata struct {
	UserID    string `json:"user_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Credential is an ephemeral scoped secret bound to a subject. The raw
// token value is never stored: only its SHA-256 hash, which doubles as the
// lookup key. The raw value exists exactly once, in the issuance response.
type Credential struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       Type       `json:"credential_type"`
	TokenHash  string     `json:"-"`
	Scopes     []string   `json:"scopes"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  string     `json:"revoked_by,omitempty"`
	Metadata   Metadata   `json:"metadata"`
}

// IsExpired reports whether the credential's lifetime has passed at the
// given instant, regardless of stored status.
func (c *Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsValid reports whether the credential is usable: stored status active
// and lifetime not yet passed.
func (c *Credential) IsValid(now time.Time) bool {
	return c.Status == StatusActive && now.Before(c.ExpiresAt)
}

// EffectiveStatus resolves the lazy time-driven expiry against the stored
// status. Revocation wins; expiry is computed from the clock, never from a
// stale stored field.
func (c *Credential) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusRevoked {
		return StatusRevoked
	}
	if c.IsExpired(now) {
		return StatusExpired
	}
	return c.Status
}

// HasScopes reports whether every required scope is granted. The wildcard
// scope "*" grants everything.
func (c *Credential) HasScopes(required []string) bool {
	for _, req := range required {
		granted := false
		for _, scope := range c.Scopes {
			if scope == "*" || scope == req {
				granted = true
				break
			}
		}
		if !granted {
			return false
		}
	}
	return true
}

// Response is the public view of a credential. It never carries the token
// value; issuance responses attach the raw token separately, once.
type Response struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       Type       `json:"credential_type"`
	Scopes     []string   `json:"scopes"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  string     `json:"revoked_by,omitempty"`
	Metadata   Metadata   `json:"metadata"`
}

// ToResponse builds the public view with the status resolved at the given
// instant.
func (c *Credential) ToResponse(now time.Time) Response {
	return Response{
		ID:         c.ID,
		Name:       c.Name,
		Type:       c.Type,
		Scopes:     c.Scopes,
		Status:     c.EffectiveStatus(now),
		CreatedAt:  c.CreatedAt,
		ExpiresAt:  c.ExpiresAt,
		LastUsedAt: c.LastUsedAt,
		CreatedBy:  c.CreatedBy,
		RevokedAt:  c.RevokedAt,
		RevokedBy:  c.RevokedBy,
		Metadata:   c.Metadata,
	}
}

// Repository defines the interface for credential persistence
type Repository interface {
	// Create creates a new credential
	Create(credential *Credential) error

	// GetByID retrieves a credential by ID
	GetByID(id string) (*Credential, error)

	// GetByTokenHash retrieves a credential by its token hash
	GetByTokenHash(tokenHash string) (*Credential, error)

	// Update replaces stored credential fields
	Update(credential *Credential) error

	// UpdateLastUsed stamps the last validation time
	UpdateLastUsed(id string, at time.Time) error

	// List retrieves all credentials
	List() ([]*Credential, error)

	// DeleteExpired removes credentials whose lifetime passed before the
	// given instant and returns the number removed
	DeleteExpired(before time.Time) (int64, error)
}
