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

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/authz"
	"github.com/sentra-access/sentra/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware resolves the bearer credential and adds the caller's
// identity to the request context. Every validation failure collapses onto
// the same 401 body: the distinction between unknown, expired, and revoked
// tokens is for the audit log, not the caller.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		result := h.credentialService.Validate(r.Context(), token, nil)
		if !result.Valid {
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:      audit.TypeCredentialDenied,
				Resource:  result.CredentialID,
				IPAddress: getIPAddress(r),
				UserAgent: r.UserAgent(),
				Metadata:  map[string]any{audit.AttrReason: result.Reason},
			})
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		ctx := withIdentity(r.Context(), AuthenticatedIdentity{
			UserID:       result.SubjectID,
			CredentialID: result.CredentialID,
			Scopes:       result.Scopes,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route group on an authorization decision for
// the authenticated caller. Denials are audited and counted; the caller
// sees a uniform 403.
func (h *Handler) RequirePermission(resourceType authz.ResourceType, action authz.ActionType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := GetIdentity(r.Context())
			if !ok || ident.UserID == "" {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			user, err := h.identityService.GetUser(r.Context(), ident.UserID)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			req := authz.CheckRequest{
				ResourceType: resourceType,
				Action:       action,
			}
			allowed, err := h.authzService.CheckAccess(r.Context(), user, req)
			if err != nil {
				slog.ErrorContext(r.Context(), "authorization check failed",
					logger.Error(err),
					logger.UserID(ident.UserID),
				)
				respondError(w, http.StatusInternalServerError, "authorization check failed")
				return
			}

			h.decisionMetrics.RecordAccessCheck(r.Context(), allowed, string(resourceType))

			if !allowed {
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeAccessDenied,
					ActorID:   ident.UserID,
					Resource:  string(resourceType),
					IPAddress: getIPAddress(r),
					UserAgent: r.UserAgent(),
					Metadata:  map[string]any{audit.AttrAction: string(action)},
				})
				respondError(w, http.StatusForbidden, "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
