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

package authz_test

import (
	"testing"
	"time"

	"github.com/sentra-access/sentra/internal/authz"
	"github.com/sentra-access/sentra/internal/identity"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func activeUser(id string) *identity.User {
	return &identity.User{ID: id, IsActive: true}
}

func readerRole(id string, resourceType authz.ResourceType) *authz.Role {
	return &authz.Role{
		ID:   id,
		Name: "reader",
		Permissions: []authz.Permission{
			{ResourceType: resourceType, Actions: []authz.ActionType{authz.ActionRead}},
		},
	}
}

// TestPurpose: Validates that the system admin override grants everything,
// including for a deactivated admin, and that regular inactive users are denied.
// Scope: Unit Test
// Security: Break-glass access vs. fail-closed on deactivation
// Expected: Admins always pass; inactive non-admins always fail.
func TestHasPermission_AdminOverrideAndInactive(t *testing.T) {
	req := authz.CheckRequest{ResourceType: authz.ResourceLLM, Action: authz.ActionDeploy}

	admin := &identity.User{ID: "u-admin", IsActive: true, IsSystemAdmin: true}
	if !authz.HasPermission(admin, nil, nil, req, testNow) {
		t.Error("system admin should be allowed with no assignments at all")
	}

	inactiveAdmin := &identity.User{ID: "u-admin2", IsActive: false, IsSystemAdmin: true}
	if !authz.HasPermission(inactiveAdmin, nil, nil, req, testNow) {
		t.Error("system admin override applies before the inactive check")
	}

	role := readerRole("r-1", authz.ResourceLLM)
	assignments := []*authz.RoleAssignment{{ID: "a-1", UserID: "u-1", RoleID: "r-1"}}
	roles := map[string]*authz.Role{"r-1": role}

	inactive := &identity.User{ID: "u-1", IsActive: false}
	readReq := authz.CheckRequest{ResourceType: authz.ResourceLLM, Action: authz.ActionRead}
	if authz.HasPermission(inactive, assignments, roles, readReq, testNow) {
		t.Error("inactive user should be denied despite a matching grant")
	}

	if authz.HasPermission(nil, assignments, roles, readReq, testNow) {
		t.Error("nil user should be denied")
	}
}

// TestPurpose: Validates the action set and resource type matching of a
// single permission grant.
// Scope: Unit Test
// Expected: Granted actions pass, ungranted actions and other types fail.
func TestHasPermission_ActionAndTypeMatching(t *testing.T) {
	role := &authz.Role{
		ID:   "r-doc",
		Name: "document-editor",
		Permissions: []authz.Permission{
			{ResourceType: authz.ResourceDocument, Actions: []authz.ActionType{authz.ActionRead, authz.ActionUpdate}},
		},
	}
	assignments := []*authz.RoleAssignment{{ID: "a-1", UserID: "u-1", RoleID: "r-doc"}}
	roles := map[string]*authz.Role{"r-doc": role}
	user := activeUser("u-1")

	tests := []struct {
		name     string
		req      authz.CheckRequest
		expected bool
	}{
		{
			name:     "granted action on granted type",
			req:      authz.CheckRequest{ResourceType: authz.ResourceDocument, Action: authz.ActionRead},
			expected: true,
		},
		{
			name:     "ungranted action on granted type",
			req:      authz.CheckRequest{ResourceType: authz.ResourceDocument, Action: authz.ActionDelete},
			expected: false,
		},
		{
			name:     "granted action on other type",
			req:      authz.CheckRequest{ResourceType: authz.ResourcePrompt, Action: authz.ActionRead},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authz.HasPermission(user, assignments, roles, tt.req, testNow)
			if result != tt.expected {
				t.Errorf("HasPermission(%v) = %v, want %v", tt.req, result, tt.expected)
			}
		})
	}
}

// TestPurpose: Validates assignment scope semantics: no scope covers
// everything, scope type only covers every instance of that type, scope type
// plus id covers exactly one instance.
// Scope: Unit Test
// Security: Lateral movement between projects must be denied
// Expected: Instance-scoped grants do not leak to sibling instances.
func TestHasPermission_ScopeMatching(t *testing.T) {
	role := readerRole("r-reader", authz.ResourceProject)
	roles := map[string]*authz.Role{"r-reader": role}
	user := activeUser("u-1")

	readProject := func(resourceID string) authz.CheckRequest {
		return authz.CheckRequest{
			ResourceType: authz.ResourceProject,
			Action:       authz.ActionRead,
			ResourceID:   resourceID,
		}
	}

	// Scoped to one project instance.
	scoped := []*authz.RoleAssignment{{
		ID: "a-1", UserID: "u-1", RoleID: "r-reader",
		ScopeType: authz.ResourceProject, ScopeID: "p1",
	}}
	if !authz.HasPermission(user, scoped, roles, readProject("p1"), testNow) {
		t.Error("in-scope instance should be allowed")
	}
	if authz.HasPermission(user, scoped, roles, readProject("p2"), testNow) {
		t.Error("sibling instance should be denied")
	}

	// Scope type without id covers every instance of the type.
	typeWide := []*authz.RoleAssignment{{
		ID: "a-2", UserID: "u-1", RoleID: "r-reader",
		ScopeType: authz.ResourceProject,
	}}
	if !authz.HasPermission(user, typeWide, roles, readProject("p2"), testNow) {
		t.Error("type-wide scope should cover every instance")
	}

	// No scope at all is a global grant.
	global := []*authz.RoleAssignment{{ID: "a-3", UserID: "u-1", RoleID: "r-reader"}}
	if !authz.HasPermission(user, global, roles, readProject("p7"), testNow) {
		t.Error("unscoped assignment should apply everywhere")
	}

	// Scope on a different resource type never applies.
	wrongType := []*authz.RoleAssignment{{
		ID: "a-4", UserID: "u-1", RoleID: "r-reader",
		ScopeType: authz.ResourceAgent,
	}}
	if authz.HasPermission(user, wrongType, roles, readProject("p1"), testNow) {
		t.Error("scope on another resource type should not apply")
	}
}

// TestPurpose: Validates the required-and-must-match rule for assignment
// constraints and permission conditions.
// Scope: Unit Test
// Expected: Every required key must be present and equal in the request
// context; extra context keys are ignored.
func TestHasPermission_ConstraintsAndConditions(t *testing.T) {
	role := &authz.Role{
		ID: "r-cond",
		Permissions: []authz.Permission{{
			ResourceType: authz.ResourceLLM,
			Actions:      []authz.ActionType{authz.ActionExecute},
			Condition:    map[string]string{"environment": "staging"},
		}},
	}
	roles := map[string]*authz.Role{"r-cond": role}
	user := activeUser("u-1")

	assignments := []*authz.RoleAssignment{{
		ID: "a-1", UserID: "u-1", RoleID: "r-cond",
		Constraints: map[string]string{"department": "ml"},
	}}

	execReq := func(ctx map[string]string) authz.CheckRequest {
		return authz.CheckRequest{
			ResourceType: authz.ResourceLLM,
			Action:       authz.ActionExecute,
			Context:      ctx,
		}
	}

	if !authz.HasPermission(user, assignments, roles, execReq(map[string]string{
		"department":  "ml",
		"environment": "staging",
		"extra":       "ignored",
	}), testNow) {
		t.Error("request satisfying constraint and condition should be allowed")
	}

	if authz.HasPermission(user, assignments, roles, execReq(map[string]string{
		"environment": "staging",
	}), testNow) {
		t.Error("missing constraint key should be denied")
	}

	if authz.HasPermission(user, assignments, roles, execReq(map[string]string{
		"department":  "ml",
		"environment": "production",
	}), testNow) {
		t.Error("condition value mismatch should be denied")
	}

	if authz.HasPermission(user, assignments, roles, execReq(nil), testNow) {
		t.Error("empty context cannot satisfy a non-empty constraint map")
	}
}

// TestPurpose: Validates lazy expiry of time-bounded assignments.
// Scope: Unit Test
// Expected: A grant is honored strictly before its expiry instant and
// skipped from the instant onward.
func TestHasPermission_ExpiredAssignment(t *testing.T) {
	role := readerRole("r-reader", authz.ResourceDocument)
	roles := map[string]*authz.Role{"r-reader": role}
	user := activeUser("u-1")
	req := authz.CheckRequest{ResourceType: authz.ResourceDocument, Action: authz.ActionRead}

	expiry := testNow.Add(time.Hour)
	assignments := []*authz.RoleAssignment{{
		ID: "a-1", UserID: "u-1", RoleID: "r-reader",
		ExpiresAt: &expiry,
	}}

	if !authz.HasPermission(user, assignments, roles, req, testNow) {
		t.Error("assignment should be active before its expiry")
	}
	if authz.HasPermission(user, assignments, roles, req, expiry) {
		t.Error("assignment should be inactive at the expiry instant")
	}
	if authz.HasPermission(user, assignments, roles, req, expiry.Add(time.Second)) {
		t.Error("assignment should be inactive after expiry")
	}
}

// TestPurpose: Validates fail-closed handling of assignments whose role id
// resolves to nothing, and that other assignments still match.
// Scope: Unit Test
// Security: Data inconsistency must not widen access
// Expected: The dangling grant contributes nothing; a healthy grant decides.
func TestHasPermission_DanglingRoleReference(t *testing.T) {
	role := readerRole("r-live", authz.ResourceTool)
	roles := map[string]*authz.Role{"r-live": role}
	user := activeUser("u-1")
	req := authz.CheckRequest{ResourceType: authz.ResourceTool, Action: authz.ActionRead}

	dangling := []*authz.RoleAssignment{{ID: "a-1", UserID: "u-1", RoleID: "r-deleted"}}
	if authz.HasPermission(user, dangling, roles, req, testNow) {
		t.Error("a grant referencing a missing role should be skipped")
	}

	mixed := []*authz.RoleAssignment{
		{ID: "a-1", UserID: "u-1", RoleID: "r-deleted"},
		{ID: "a-2", UserID: "u-1", RoleID: "r-live"},
	}
	if !authz.HasPermission(user, mixed, roles, req, testNow) {
		t.Error("a healthy grant should decide despite a dangling sibling")
	}
}

// TestPurpose: Validates that the decision does not depend on assignment
// iteration order when grants disagree in shape.
// Scope: Unit Test
// Expected: Reversing the slice yields the same answers.
func TestHasPermission_OrderIndependence(t *testing.T) {
	viewer := readerRole("r-viewer", authz.ResourceKnowledgeBase)
	editor := &authz.Role{
		ID: "r-editor",
		Permissions: []authz.Permission{{
			ResourceType: authz.ResourceKnowledgeBase,
			Actions:      []authz.ActionType{authz.ActionRead, authz.ActionUpdate},
		}},
	}
	roles := map[string]*authz.Role{"r-viewer": viewer, "r-editor": editor}
	user := activeUser("u-1")

	forward := []*authz.RoleAssignment{
		{ID: "a-1", UserID: "u-1", RoleID: "r-viewer"},
		{ID: "a-2", UserID: "u-1", RoleID: "r-editor", ScopeType: authz.ResourceKnowledgeBase, ScopeID: "kb-1"},
	}
	backward := []*authz.RoleAssignment{forward[1], forward[0]}

	requests := []authz.CheckRequest{
		{ResourceType: authz.ResourceKnowledgeBase, Action: authz.ActionRead, ResourceID: "kb-1"},
		{ResourceType: authz.ResourceKnowledgeBase, Action: authz.ActionUpdate, ResourceID: "kb-1"},
		{ResourceType: authz.ResourceKnowledgeBase, Action: authz.ActionUpdate, ResourceID: "kb-2"},
		{ResourceType: authz.ResourceKnowledgeBase, Action: authz.ActionDelete, ResourceID: "kb-1"},
	}

	for _, req := range requests {
		a := authz.HasPermission(user, forward, roles, req, testNow)
		b := authz.HasPermission(user, backward, roles, req, testNow)
		if a != b {
			t.Errorf("order-dependent result for %v: forward=%v backward=%v", req, a, b)
		}
	}

	// Sanity on the expected outcomes themselves.
	if !authz.HasPermission(user, forward, roles, requests[0], testNow) {
		t.Error("read on kb-1 should be allowed")
	}
	if !authz.HasPermission(user, forward, roles, requests[1], testNow) {
		t.Error("update on kb-1 should be allowed via the scoped editor grant")
	}
	if authz.HasPermission(user, forward, roles, requests[2], testNow) {
		t.Error("update on kb-2 should be denied, editor grant is scoped to kb-1")
	}
	if authz.HasPermission(user, forward, roles, requests[3], testNow) {
		t.Error("delete should be denied, no grant carries it")
	}
}

// TestPurpose: Validates instance-level permissions inside a role: a
// permission bound to one resource id never covers siblings.
// Scope: Unit Test
// Expected: Read on the named document passes, delete and sibling reads fail.
func TestHasPermission_InstanceLevelPermission(t *testing.T) {
	role := &authz.Role{
		ID: "r-doc42",
		Permissions: []authz.Permission{{
			ResourceType: authz.ResourceDocument,
			Actions:      []authz.ActionType{authz.ActionRead},
			ResourceID:   "doc-42",
		}},
	}
	roles := map[string]*authz.Role{"r-doc42": role}
	assignments := []*authz.RoleAssignment{{ID: "a-1", UserID: "u-1", RoleID: "r-doc42"}}
	user := activeUser("u-1")

	allowed := authz.HasPermission(user, assignments, roles, authz.CheckRequest{
		ResourceType: authz.ResourceDocument, Action: authz.ActionRead, ResourceID: "doc-42",
	}, testNow)
	if !allowed {
		t.Error("read on the named instance should be allowed")
	}

	denied := []authz.CheckRequest{
		{ResourceType: authz.ResourceDocument, Action: authz.ActionDelete, ResourceID: "doc-42"},
		{ResourceType: authz.ResourceDocument, Action: authz.ActionRead, ResourceID: "doc-43"},
		{ResourceType: authz.ResourceDocument, Action: authz.ActionRead},
	}
	for _, req := range denied {
		if authz.HasPermission(user, assignments, roles, req, testNow) {
			t.Errorf("request %v should be denied", req)
		}
	}
}

// TestPurpose: Validates that assignments belonging to other users never
// contribute to a decision.
// Scope: Unit Test
// Security: Grants are per-user edges, not ambient
// Expected: A grant for user B does nothing for user A.
func TestHasPermission_OtherUsersAssignmentsIgnored(t *testing.T) {
	role := readerRole("r-reader", authz.ResourceVectorDB)
	roles := map[string]*authz.Role{"r-reader": role}
	assignments := []*authz.RoleAssignment{{ID: "a-1", UserID: "u-other", RoleID: "r-reader"}}

	req := authz.CheckRequest{ResourceType: authz.ResourceVectorDB, Action: authz.ActionRead}
	if authz.HasPermission(activeUser("u-1"), assignments, roles, req, testNow) {
		t.Error("another user's grant should not apply")
	}
}
