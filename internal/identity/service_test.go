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
	"errors"
	"testing"
	"time"

	"github.com/sentra-access/sentra/internal/audit"
)

// MockUserRepository is a simple in-memory implementation of UserRepository
type MockUserRepository struct {
	users       map[string]*User
	credentials map[string]*Credentials
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (m *MockUserRepository) Create(user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByEmail(email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) Update(user *User) error {
	if _, ok := m.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Delete(id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List() ([]*User, error) {
	var out []*User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *MockUserRepository) AddCredentials(credentials *Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *MockUserRepository) GetCredentials(userID string) (*Credentials, error) {
	c, ok := m.credentials[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return c, nil
}

func (m *MockUserRepository) UpdatePassword(userID, passwordHash string) error {
	c, ok := m.credentials[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func (m *MockUserRepository) UpdateLastLogin(userID string, at time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func testHasher() *PasswordHasher {
	// Light parameters to keep the suite fast.
	return NewPasswordHasher(8*1024, 1, 1, 16, 32)
}

func newTestIdentityService() (*Service, *MockUserRepository) {
	repo := NewMockUserRepository()
	svc := NewService(repo, testHasher(), audit.NewSlogLogger())
	return svc, repo
}

// TestPurpose: Validates provisioning defaults and duplicate/format
// rejection.
// Scope: Unit Test
// Expected: New users start active and non-admin; bad emails and duplicate
// emails fail.
func TestProvisionUser(t *testing.T) {
	svc, _ := newTestIdentityService()
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "ada@example.com", "Ada", "research")
	if err != nil {
		t.Fatalf("ProvisionUser failed: %v", err)
	}
	if user.ID == "" {
		t.Error("user should have an id")
	}
	if !user.IsActive {
		t.Error("new users should start active")
	}
	if user.IsSystemAdmin {
		t.Error("new users must not start as system admins")
	}

	if _, err := svc.ProvisionUser(ctx, "ada@example.com", "Ada II", ""); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate email: got %v, want ErrUserAlreadyExists", err)
	}

	for _, email := range []string{"", "no-at-sign", "@left", "right@"} {
		if _, err := svc.ProvisionUser(ctx, email, "", ""); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("email %q: got %v, want ErrInvalidEmail", email, err)
		}
	}
}

// TestPurpose: Validates authentication outcomes: success stamps last
// login, wrong passwords and unknown users fail closed, inactive users are
// rejected before the password check.
// Scope: Unit Test
// Security: Credential verification and account lockout surface
// Expected: Each path yields its dedicated error.
func TestAuthenticate(t *testing.T) {
	svc, _ := newTestIdentityService()
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "grace@example.com", "Grace", "systems")
	if err != nil {
		t.Fatalf("ProvisionUser failed: %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "correct-horse-battery"); err != nil {
		t.Fatalf("AddPassword failed: %v", err)
	}

	authenticated, err := svc.Authenticate(ctx, "grace@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if authenticated.LastLogin == nil {
		t.Error("successful login should stamp LastLogin")
	}

	if _, err := svc.Authenticate(ctx, "grace@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "grace@example.com", "correct-horse-battery"); !errors.Is(err, ErrUserInactive) {
		t.Errorf("inactive user: got %v, want ErrUserInactive", err)
	}
}

// TestPurpose: Validates password management: strength floor, change with
// old-password verification, and the weak-password rejection on change.
// Scope: Unit Test
// Expected: Short passwords fail; a successful change invalidates the old
// password.
func TestPasswordManagement(t *testing.T) {
	svc, _ := newTestIdentityService()
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "alan@example.com", "Alan", "")
	if err != nil {
		t.Fatalf("ProvisionUser failed: %v", err)
	}

	if err := svc.AddPassword(ctx, user.ID, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak password: got %v, want ErrWeakPassword", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "long-enough-password"); err != nil {
		t.Fatalf("AddPassword failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong-old", "another-long-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong old password: got %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "long-enough-password", "tiny"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak new password: got %v, want ErrWeakPassword", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "long-enough-password", "another-long-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "alan@example.com", "long-enough-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password should no longer authenticate")
	}
	if _, err := svc.Authenticate(ctx, "alan@example.com", "another-long-password"); err != nil {
		t.Errorf("new password should authenticate: %v", err)
	}
}

// TestPurpose: Validates the admin and active flag toggles used by the
// evaluation engine.
// Scope: Unit Test
// Expected: Flags round-trip through the store.
func TestFlagToggles(t *testing.T) {
	svc, repo := newTestIdentityService()
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "root@example.com", "Root", "platform")
	if err != nil {
		t.Fatalf("ProvisionUser failed: %v", err)
	}

	if _, err := svc.SetSystemAdmin(ctx, user.ID, true); err != nil {
		t.Fatalf("SetSystemAdmin failed: %v", err)
	}
	stored, _ := repo.GetByID(user.ID)
	if !stored.IsSystemAdmin {
		t.Error("IsSystemAdmin should be set")
	}

	if _, err := svc.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	stored, _ = repo.GetByID(user.ID)
	if stored.IsActive {
		t.Error("IsActive should be cleared")
	}

	if _, err := svc.SetSystemAdmin(ctx, "missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: got %v, want ErrUserNotFound", err)
	}
}

// TestPurpose: Validates the Argon2id hasher round trip and its encoded
// format self-containment.
// Scope: Unit Test
// Expected: Verify succeeds on the right password and fails on others;
// hashing twice yields distinct encodings.
func TestPasswordHasher(t *testing.T) {
	hasher := testHasher()

	hash, err := hasher.Hash("a-decent-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	ok, err := hasher.Verify("a-decent-password", hash)
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = hasher.Verify("a-different-password", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Error("Verify should reject the wrong password")
	}

	second, err := hasher.Hash("a-decent-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if second == hash {
		t.Error("salted hashes of the same password should differ")
	}
}
