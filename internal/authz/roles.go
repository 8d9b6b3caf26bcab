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

import "time"

// System-defined role IDs. These are fixed constants seeded at startup and
// must remain stable: assignments reference them directly.
const (
	// RoleIDSystemAdmin grants every action on every resource type.
	RoleIDSystemAdmin = "role_system_admin"

	// RoleIDReadOnly grants read on every resource type.
	RoleIDReadOnly = "role_read_only"

	// RoleIDAIDeveloper grants build/run access to the AI toolchain.
	RoleIDAIDeveloper = "role_ai_developer"

	// RoleIDBusinessUser grants consume-level access to published assets.
	RoleIDBusinessUser = "role_business_user"
)

// SystemRoleCatalog returns the fixed set of built-in roles. The catalog is
// recomputed on every boot; seeding it is idempotent and never touches
// custom roles.
func SystemRoleCatalog(now time.Time) []*Role {
	adminPerms := make([]Permission, 0, len(AllResourceTypes))
	readPerms := make([]Permission, 0, len(AllResourceTypes))
	for _, rt := range AllResourceTypes {
		adminPerms = append(adminPerms, Permission{
			ResourceType: rt,
			Actions:      append([]ActionType(nil), AllActionTypes...),
		})
		readPerms = append(readPerms, Permission{
			ResourceType: rt,
			Actions:      []ActionType{ActionRead},
		})
	}

	developerPerms := []Permission{
		{ResourceType: ResourceLLM, Actions: []ActionType{ActionRead, ActionExecute, ActionPrompt, ActionConfigure}},
		{ResourceType: ResourceAgent, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute, ActionDeploy}},
		{ResourceType: ResourceTool, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute}},
		{ResourceType: ResourcePrompt, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute}},
		{ResourceType: ResourceVectorDB, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate, ActionExecute}},
		{ResourceType: ResourceKnowledgeBase, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate, ActionTrain}},
		{ResourceType: ResourceMCP, Actions: []ActionType{ActionRead, ActionExecute, ActionConfigure}},
		{ResourceType: ResourceAPI, Actions: []ActionType{ActionRead, ActionExecute}},
		{ResourceType: ResourceDocument, Actions: []ActionType{ActionCreate, ActionRead, ActionUpdate}},
		{ResourceType: ResourceProject, Actions: []ActionType{ActionRead, ActionUpdate}},
	}

	businessPerms := []Permission{
		{ResourceType: ResourceAgent, Actions: []ActionType{ActionRead, ActionExecute}},
		{ResourceType: ResourceTool, Actions: []ActionType{ActionRead, ActionExecute}},
		{ResourceType: ResourcePrompt, Actions: []ActionType{ActionRead, ActionExecute}},
		{ResourceType: ResourceDocument, Actions: []ActionType{ActionCreate, ActionRead, ActionShare}},
		{ResourceType: ResourceKnowledgeBase, Actions: []ActionType{ActionRead}},
		{ResourceType: ResourceAPI, Actions: []ActionType{ActionRead}},
		{ResourceType: ResourceProject, Actions: []ActionType{ActionRead}},
	}

	return []*Role{
		{
			ID:           RoleIDSystemAdmin,
			Name:         "System Administrator",
			Description:  "Full access to every resource type and action",
			Permissions:  adminPerms,
			IsSystemRole: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           RoleIDReadOnly,
			Name:         "Read Only",
			Description:  "Read access to every resource type",
			Permissions:  readPerms,
			IsSystemRole: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           RoleIDAIDeveloper,
			Name:         "AI Developer",
			Description:  "Build and operate agents, tools, prompts, and knowledge stores",
			Permissions:  developerPerms,
			IsSystemRole: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           RoleIDBusinessUser,
			Name:         "Business User",
			Description:  "Consume published agents, tools, and documents",
			Permissions:  businessPerms,
			IsSystemRole: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}
