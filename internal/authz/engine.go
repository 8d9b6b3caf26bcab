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

package authz

import (
	"time"

	"github.com/sentra-access/sentra/internal/identity"
)

// CheckRequest describes one authorization question: may this user perform
// this action on this resource, given the request context.
type CheckRequest struct {
	ResourceType ResourceType
	Action       ActionType
	ResourceID   string
	Context      map[string]string
}

// HasPermission evaluates whether a user may perform an action on a
// resource. It is a pure function over the snapshot passed in: no I/O, no
// shared state, safe to call concurrently. The result does not depend on
// assignment iteration order (the first match short-circuits, but matching
// is a disjunction, so any order yields the same answer).
//
// Data inconsistencies degrade to "this grant does not apply": expired
// assignments, dangling role ids, and unknown scope values are skipped, not
// errors. Callers audit the outcome; the engine never logs.
//
// The system-admin override runs before the inactive check, so a
// deactivated admin still passes. That ordering is deliberate and covered
// by tests; see DESIGN.md.
func HasPermission(
	user *identity.User,
	assignments []*RoleAssignment,
	rolesByID map[string]*Role,
	req CheckRequest,
	now time.Time,
) bool {
	if user == nil {
		return false
	}
	if user.IsSystemAdmin {
		return true
	}
	if !user.IsActive {
		return false
	}

	for _, assignment := range assignments {
		if assignment.UserID != user.ID {
			continue
		}
		if !assignment.IsActive(now) {
			continue
		}
		if !assignment.scopeApplies(req.ResourceType, req.ResourceID) {
			continue
		}
		if !matchesContext(assignment.Constraints, req.Context) {
			continue
		}

		role, ok := rolesByID[assignment.RoleID]
		if !ok || role == nil {
			// Dangling role reference: tolerated, fail closed per assignment.
			continue
		}

		for _, permission := range role.Permissions {
			if permissionMatches(permission, req) {
				return true
			}
		}
	}

	return false
}

// permissionMatches reports whether a single permission grants the request:
// same resource type, instance id unset or equal, action in the set, and the
// condition map satisfied by the request context.
func permissionMatches(p Permission, req CheckRequest) bool {
	if p.ResourceType != req.ResourceType {
		return false
	}
	if p.ResourceID != "" && p.ResourceID != req.ResourceID {
		return false
	}
	if !p.allowsAction(req.Action) {
		return false
	}
	return matchesContext(p.Condition, req.Context)
}
