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
	"testing"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRepository is a simple in-memory implementation of Repository
type MockRepository struct {
	credentials map[string]*Credential
}

func NewMockRepository() *MockRepository {
	return &MockRepository{credentials: make(map[string]*Credential)}
}

func (m *MockRepository) Create(cred *Credential) error {
	copied := *cred
	m.credentials[cred.ID] = &copied
	return nil
}

func (m *MockRepository) GetByID(id string) (*Credential, error) {
	cred, ok := m.credentials[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

func (m *MockRepository) GetByTokenHash(tokenHash string) (*Credential, error) {
	for _, cred := range m.credentials {
		if cred.TokenHash == tokenHash {
			copied := *cred
			return &copied, nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (m *MockRepository) Update(cred *Credential) error {
	if _, ok := m.credentials[cred.ID]; !ok {
		return ErrCredentialNotFound
	}
	copied := *cred
	m.credentials[cred.ID] = &copied
	return nil
}

func (m *MockRepository) UpdateLastUsed(id string, at time.Time) error {
	cred, ok := m.credentials[id]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.LastUsedAt = &at
	return nil
}

func (m *MockRepository) List() ([]*Credential, error) {
	var out []*Credential
	for _, cred := range m.credentials {
		copied := *cred
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockRepository) DeleteExpired(before time.Time) (int64, error) {
	var removed int64
	for id, cred := range m.credentials {
		if cred.ExpiresAt.Before(before) {
			delete(m.credentials, id)
			removed++
		}
	}
	return removed, nil
}

// CountingAuditLogger records events for assertion
type CountingAuditLogger struct {
	events []audit.Event
}

func (c *CountingAuditLogger) Log(ctx context.Context, event audit.Event) {
	c.events = append(c.events, event)
}

func (c *CountingAuditLogger) countOf(eventType string) int {
	n := 0
	for _, e := range c.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*Service, *MockRepository, *CountingAuditLogger, *time.Time) {
	t.Helper()
	repo := NewMockRepository()
	auditLogger := &CountingAuditLogger{}
	svc := NewService(repo, auditLogger, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }
	return svc, repo, auditLogger, clock
}

// TestPurpose: Validates TTL bounds at issuance: one week maximum, one
// minute minimum, both inclusive.
// Scope: Unit Test
// Expected: 59s, 0, and 604801s are rejected; 60s and 604800s are accepted.
func TestCreate_TTLBounds(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	base := CreateInput{Name: "ci token", Type: TypeAPIKey, CreatedBy: "u-1"}

	for _, ttl := range []int{0, 59, 604801, -60} {
		in := base
		in.TTLSeconds = ttl
		_, _, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, "ttl_seconds=%d should be rejected", ttl)
	}

	for _, ttl := range []int{60, 604800} {
		in := base
		in.TTLSeconds = ttl
		cred, token, err := svc.Create(ctx, in)
		require.NoError(t, err, "ttl_seconds=%d should be accepted", ttl)
		assert.NotEmpty(t, token)
		assert.Equal(t, time.Duration(ttl)*time.Second, cred.ExpiresAt.Sub(cred.CreatedAt))
	}
}

// TestPurpose: Validates issuance input checks beyond TTL.
// Scope: Unit Test
// Expected: Empty names and unknown types are rejected with validation
// errors.
func TestCreate_InputValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, CreateInput{Name: "", Type: TypeAPIKey, TTLSeconds: 3600})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Create(ctx, CreateInput{Name: "x", Type: "punch_card", TTLSeconds: 3600})
	assert.ErrorIs(t, err, ErrValidation)
}

// TestPurpose: Validates that the raw token value is never stored: only its
// hash is, and the stored record cannot reproduce the token.
// Scope: Unit Test
// Security: Token-at-rest protection
// Expected: Stored hash equals the hash of the returned token and differs
// from the token itself.
func TestCreate_StoresOnlyTokenHash(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	cred, token, err := svc.Create(ctx, CreateInput{
		Name: "worker key", Type: TypeServiceToken, TTLSeconds: 3600,
		Metadata: Metadata{ServiceID: "svc-ingest"},
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(cred.ID)
	require.NoError(t, err)
	assert.Equal(t, hashToken(token), stored.TokenHash)
	assert.NotEqual(t, token, stored.TokenHash)

	// The public view never exposes token material.
	resp := stored.ToResponse(time.Now())
	assert.Equal(t, cred.ID, resp.ID)
}

// TestPurpose: Validates the full validation decision table: unknown token,
// expired, revoked, scope subset, and the wildcard scope.
// Scope: Unit Test
// Expected: Each path yields the documented reason and Valid=false; happy
// paths yield Valid=true with the credential's subject and scopes.
func TestValidate_DecisionTable(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	cred, token, err := svc.Create(ctx, CreateInput{
		Name: "kb reader", Type: TypeAPIKey, TTLSeconds: 3600,
		Scopes:   []string{"kb:read", "doc:read"},
		Metadata: Metadata{UserID: "u-1"},
	})
	require.NoError(t, err)

	result := svc.Validate(ctx, token, []string{"kb:read"})
	assert.True(t, result.Valid)
	assert.Equal(t, cred.ID, result.CredentialID)
	assert.Equal(t, "u-1", result.SubjectID)
	assert.Equal(t, []string{"kb:read", "doc:read"}, result.Scopes)

	// Scope the credential does not carry.
	result = svc.Validate(ctx, token, []string{"kb:read", "kb:write"})
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonInsufficientScope, result.Reason)

	// Unknown token.
	result = svc.Validate(ctx, "no-such-token", nil)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)

	result = svc.Validate(ctx, "", nil)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)

	// Expiry is lazy: advance the clock past expires_at.
	*clock = clock.Add(2 * time.Hour)
	result = svc.Validate(ctx, token, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)
	*clock = clock.Add(-2 * time.Hour)

	// Revocation wins over everything.
	require.NoError(t, svc.Revoke(ctx, cred.ID, "u-admin", "rotated"))
	result = svc.Validate(ctx, token, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonRevoked, result.Reason)
}

// TestPurpose: Validates that the wildcard scope grants every required
// scope.
// Scope: Unit Test
// Expected: "*" satisfies arbitrary requirements.
func TestValidate_WildcardScope(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Create(ctx, CreateInput{
		Name: "root key", Type: TypeAPIKey, TTLSeconds: 3600,
		Scopes: []string{"*"},
	})
	require.NoError(t, err)

	result := svc.Validate(ctx, token, []string{"kb:read", "kb:write", "admin"})
	assert.True(t, result.Valid)
}

// TestPurpose: Validates that successful validation stamps last_used_at but
// never extends the lifetime.
// Scope: Unit Test
// Expected: last_used_at advances per validation; expires_at never moves.
func TestValidate_StampsLastUsedWithoutSlidingExpiry(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	cred, token, err := svc.Create(ctx, CreateInput{
		Name: "session", Type: TypeSessionToken, TTLSeconds: 3600,
	})
	require.NoError(t, err)
	originalExpiry := cred.ExpiresAt

	*clock = clock.Add(10 * time.Minute)
	result := svc.Validate(ctx, token, nil)
	require.True(t, result.Valid)

	stored, err := repo.GetByID(cred.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)
	assert.True(t, stored.LastUsedAt.Equal(*clock))
	assert.True(t, stored.ExpiresAt.Equal(originalExpiry), "validation must not extend expiry")

	// A failed validation does not stamp.
	*clock = clock.Add(2 * time.Hour)
	result = svc.Validate(ctx, token, nil)
	require.False(t, result.Valid)
	after, err := repo.GetByID(cred.ID)
	require.NoError(t, err)
	assert.True(t, after.LastUsedAt.Equal(*stored.LastUsedAt))
}

// TestPurpose: Validates revocation idempotence and its audit behavior.
// Scope: Unit Test
// Expected: Repeated revokes succeed, record exactly one audit event, and
// preserve the first revocation's timestamp and actor.
func TestRevoke_Idempotent(t *testing.T) {
	svc, repo, auditLogger, clock := newTestService(t)
	ctx := context.Background()

	cred, _, err := svc.Create(ctx, CreateInput{
		Name: "short lived", Type: TypeAPIKey, TTLSeconds: 3600,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, cred.ID, "u-admin", "compromised"))
	firstRevokedAt := *clock

	*clock = clock.Add(30 * time.Minute)
	require.NoError(t, svc.Revoke(ctx, cred.ID, "u-other", "again"))
	require.NoError(t, svc.Revoke(ctx, cred.ID, "u-other", "and again"))

	stored, err := repo.GetByID(cred.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, stored.Status)
	assert.Equal(t, "u-admin", stored.RevokedBy, "first revocation wins")
	require.NotNil(t, stored.RevokedAt)
	assert.True(t, stored.RevokedAt.Equal(firstRevokedAt))

	assert.Equal(t, 1, auditLogger.countOf(audit.TypeCredentialRevoked))

	err = svc.Revoke(ctx, "cred-missing", "u-admin", "")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

// TestPurpose: Validates lazy status filtering in listings: expiry is
// computed from the clock, not the stored field.
// Scope: Unit Test
// Expected: Default listing hides expired and revoked records; flags bring
// them back with their effective status.
func TestList_LazyStatusFilter(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	shortLived, _, err := svc.Create(ctx, CreateInput{Name: "short", Type: TypeAPIKey, TTLSeconds: 60})
	require.NoError(t, err)
	longLived, _, err := svc.Create(ctx, CreateInput{Name: "long", Type: TypeAPIKey, TTLSeconds: 86400})
	require.NoError(t, err)
	revoked, _, err := svc.Create(ctx, CreateInput{Name: "revoked", Type: TypeAPIKey, TTLSeconds: 86400})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, revoked.ID, "u-admin", ""))

	*clock = clock.Add(10 * time.Minute)

	active, err := svc.List(ctx, false, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, longLived.ID, active[0].ID)

	all, err := svc.List(ctx, true, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	for _, cred := range all {
		switch cred.ID {
		case shortLived.ID:
			assert.Equal(t, StatusExpired, cred.EffectiveStatus(*clock))
		case revoked.ID:
			assert.Equal(t, StatusRevoked, cred.EffectiveStatus(*clock))
		case longLived.ID:
			assert.Equal(t, StatusActive, cred.EffectiveStatus(*clock))
		}
	}
}

// TestPurpose: Validates that the expiry sweep removes only credentials past
// their lifetime and that re-running it removes nothing more.
// Scope: Unit Test
// Expected: One record removed on the first sweep, zero on the second.
func TestCleanupExpired_Idempotent(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	expired, _, err := svc.Create(ctx, CreateInput{Name: "short", Type: TypeAPIKey, TTLSeconds: 60})
	require.NoError(t, err)
	surviving, _, err := svc.Create(ctx, CreateInput{Name: "long", Type: TypeAPIKey, TTLSeconds: 86400})
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	_, err = repo.GetByID(expired.ID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	_, err = repo.GetByID(surviving.ID)
	assert.NoError(t, err)
}

// TestPurpose: Validates the JWT envelope issued for access tokens: claims
// mirror the credential, and validation still resolves by hash.
// Scope: Unit Test
// Expected: jti carries the credential id; tampered tokens fail Parse but a
// valid one passes both Parse and Validate.
func TestAccessToken_JWTEnvelope(t *testing.T) {
	repo := NewMockRepository()
	auditLogger := &CountingAuditLogger{}
	signer, err := NewTokenSigner([]byte("0123456789abcdef0123456789abcdef"), "sentra-test")
	require.NoError(t, err)
	svc := NewService(repo, auditLogger, signer)

	ctx := context.Background()
	cred, token, err := svc.Create(ctx, CreateInput{
		Name: "api access", Type: TypeAccessToken, TTLSeconds: 3600,
		Scopes:   []string{"doc:read"},
		Metadata: Metadata{UserID: "u-1"},
	})
	require.NoError(t, err)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, claims["jti"])
	assert.Equal(t, "u-1", claims["sub"])
	assert.Equal(t, "sentra-test", claims["iss"])

	_, err = signer.Parse(token + "x")
	assert.Error(t, err)

	result := svc.Validate(ctx, token, []string{"doc:read"})
	assert.True(t, result.Valid)
	assert.Equal(t, cred.ID, result.CredentialID)

	// Non-access types stay opaque even with a signer configured.
	_, opaque, err := svc.Create(ctx, CreateInput{
		Name: "plain key", Type: TypeAPIKey, TTLSeconds: 3600,
	})
	require.NoError(t, err)
	_, err = signer.Parse(opaque)
	assert.Error(t, err)
}
