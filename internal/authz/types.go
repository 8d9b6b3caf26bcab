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
	"errors"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleAlreadyExists   = errors.New("role already exists")
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrSystemRoleImmutable = errors.New("system role cannot be modified or deleted")
	ErrInvalidPermission   = errors.New("invalid permission")
	ErrValidation          = errors.New("validation failed")
)

// ResourceType identifies the kind of platform resource a permission or
// assignment scope refers to. The enumeration is closed: evaluation code
// treats unknown values as non-matching.
type ResourceType string

const (
	ResourceSystem        ResourceType = "system"
	ResourceUser          ResourceType = "user"
	ResourceRole          ResourceType = "role"
	ResourceLLM           ResourceType = "llm"
	ResourceAgent         ResourceType = "agent"
	ResourceTool          ResourceType = "tool"
	ResourcePrompt        ResourceType = "prompt"
	ResourceDocument      ResourceType = "document"
	ResourceVectorDB      ResourceType = "vector_db"
	ResourceKnowledgeBase ResourceType = "knowledge_base"
	ResourceMCP           ResourceType = "mcp"
	ResourceAPI           ResourceType = "api"
	ResourceIntegration   ResourceType = "integration"
	ResourceProject       ResourceType = "project"
	ResourceOrganization  ResourceType = "organization"
	ResourceDepartment    ResourceType = "department"
	ResourceCustom        ResourceType = "custom"
)

// AllResourceTypes lists every ResourceType in declaration order.
var AllResourceTypes = []ResourceType{
	ResourceSystem, ResourceUser, ResourceRole, ResourceLLM, ResourceAgent,
	ResourceTool, ResourcePrompt, ResourceDocument, ResourceVectorDB,
	ResourceKnowledgeBase, ResourceMCP, ResourceAPI, ResourceIntegration,
	ResourceProject, ResourceOrganization, ResourceDepartment, ResourceCustom,
}

// Valid reports whether rt is a member of the closed enumeration.
func (rt ResourceType) Valid() bool {
	for _, known := range AllResourceTypes {
		if rt == known {
			return true
		}
	}
	return false
}

// ActionType identifies an operation on a resource.
type ActionType string

const (
	ActionCreate    ActionType = "create"
	ActionRead      ActionType = "read"
	ActionUpdate    ActionType = "update"
	ActionDelete    ActionType = "delete"
	ActionExecute   ActionType = "execute"
	ActionManage    ActionType = "manage"
	ActionShare     ActionType = "share"
	ActionApprove   ActionType = "approve"
	ActionAssign    ActionType = "assign"
	ActionTrain     ActionType = "train"
	ActionDeploy    ActionType = "deploy"
	ActionPrompt    ActionType = "prompt"
	ActionConfigure ActionType = "configure"
	ActionMonitor   ActionType = "monitor"
	ActionAudit     ActionType = "audit"
	ActionCustom    ActionType = "custom"
)

// AllActionTypes lists every ActionType in declaration order.
var AllActionTypes = []ActionType{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute,
	ActionManage, ActionShare, ActionApprove, ActionAssign, ActionTrain,
	ActionDeploy, ActionPrompt, ActionConfigure, ActionMonitor, ActionAudit,
	ActionCustom,
}

// Valid reports whether a is a member of the closed enumeration.
func (a ActionType) Valid() bool {
	for _, known := range AllActionTypes {
		if a == known {
			return true
		}
	}
	return false
}

// Permission is an atomic grant: a resource type, a non-empty action set,
// and optionally a single instance id, attribute list, and condition map.
// An empty ResourceID means the permission covers every instance of the
// type; a permission is never scoped to a set of ids.
type Permission struct {
	ResourceType ResourceType      `json:"resource_type"`
	Actions      []ActionType      `json:"actions"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Attributes   []string          `json:"attributes,omitempty"`
	Condition    map[string]string `json:"condition,omitempty"`
	Description  string            `json:"description,omitempty"`
}

// Validate rejects malformed permissions before they reach the store.
func (p Permission) Validate() error {
	if !p.ResourceType.Valid() {
		return errors.Join(ErrValidation, errors.New("unknown resource type: "+string(p.ResourceType)))
	}
	if len(p.Actions) == 0 {
		return errors.Join(ErrValidation, errors.New("permission requires at least one action"))
	}
	for _, a := range p.Actions {
		if !a.Valid() {
			return errors.Join(ErrValidation, errors.New("unknown action: "+string(a)))
		}
	}
	return nil
}

// allowsAction reports whether the action set contains a.
func (p Permission) allowsAction(a ActionType) bool {
	for _, action := range p.Actions {
		if action == a {
			return true
		}
	}
	return false
}

// Role is a named collection of permissions. System roles are seeded at
// startup from a fixed catalog and reject update and delete.
type Role struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Permissions  []Permission `json:"permissions"`
	IsSystemRole bool         `json:"is_system_role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RoleAssignment is a directed edge from a user to a role, optionally
// restricted to a resource scope, constrained by a context-match map, and
// time-bounded. ScopeType set with ScopeID empty covers every instance of
// the scope type; neither set means the assignment is global.
type RoleAssignment struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	RoleID      string            `json:"role_id"`
	ScopeType   ResourceType      `json:"scope_type,omitempty"`
	ScopeID     string            `json:"scope_id,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	CreatedBy   string            `json:"created_by"`
}

// IsActive reports whether the assignment is unexpired at the given instant.
// Expired assignments are skipped at evaluation time, not deleted; removal
// is a separate explicit operation.
func (a *RoleAssignment) IsActive(now time.Time) bool {
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// scopeApplies reports whether the assignment's scope covers the requested
// resource.
func (a *RoleAssignment) scopeApplies(resourceType ResourceType, resourceID string) bool {
	if a.ScopeType == "" {
		return true
	}
	if a.ScopeType != resourceType {
		return false
	}
	return a.ScopeID == "" || a.ScopeID == resourceID
}

// matchesContext applies the required-and-must-match rule shared by
// assignment constraints and permission conditions: every required key must
// be present in the request context with an equal value.
func matchesContext(required, reqCtx map[string]string) bool {
	for key, want := range required {
		got, ok := reqCtx[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	// Create creates a new role
	Create(role *Role) error

	// GetByID retrieves a role by ID
	GetByID(id string) (*Role, error)

	// GetByName retrieves a role by name
	GetByName(name string) (*Role, error)

	// Update replaces stored role fields
	Update(role *Role) error

	// Delete deletes a role
	Delete(id string) error

	// List retrieves all roles
	List() ([]*Role, error)
}

// AssignmentRepository defines the interface for role assignment persistence
type AssignmentRepository interface {
	// Create creates a new assignment
	Create(assignment *RoleAssignment) error

	// GetByID retrieves an assignment by ID
	GetByID(id string) (*RoleAssignment, error)

	// Update replaces mutable assignment fields
	Update(assignment *RoleAssignment) error

	// Delete hard-deletes an assignment
	Delete(id string) error

	// ListForUser retrieves all assignments for a user, expired included
	ListForUser(userID string) ([]*RoleAssignment, error)

	// ListForRole retrieves all assignments referencing a role
	ListForRole(roleID string) ([]*RoleAssignment, error)
}
