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

package http

import "context"

type contextKey string

const identityKey contextKey = "identity"

// AuthenticatedIdentity is the caller resolved by AuthMiddleware: the user
// behind the presented credential, plus the credential itself and its
// granted scopes.
type AuthenticatedIdentity struct {
	UserID       string
	CredentialID string
	Scopes       []string
}

// GetIdentity retrieves the authenticated caller from context.
func GetIdentity(ctx context.Context) (AuthenticatedIdentity, bool) {
	val, ok := ctx.Value(identityKey).(AuthenticatedIdentity)
	return val, ok
}

// GetUserID retrieves the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := GetIdentity(ctx); ok {
		return val.UserID
	}
	return ""
}

func withIdentity(ctx context.Context, ident AuthenticatedIdentity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}
