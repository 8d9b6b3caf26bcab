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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sentra-access/sentra/internal/audit"
	"github.com/sentra-access/sentra/internal/authz"
	"github.com/sentra-access/sentra/internal/credential"
	"github.com/sentra-access/sentra/internal/identity"
	"github.com/sentra-access/sentra/internal/observability/logger"
	"github.com/sentra-access/sentra/internal/observability/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService   *identity.Service
	authzService      *authz.Service
	credentialService *credential.Service
	auditLogger       audit.Logger
	decisionMetrics   *metrics.DecisionMetrics
	sessionTTL        time.Duration
}

// SessionConfig holds session credential configuration
type SessionConfig struct {
	TTL time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	authzService *authz.Service,
	credentialService *credential.Service,
	auditLogger audit.Logger,
	decisionMetrics *metrics.DecisionMetrics,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService:   identityService,
		authzService:      authzService,
		credentialService: credentialService,
		auditLogger:       auditLogger,
		decisionMetrics:   decisionMetrics,
		sessionTTL:        sessionConfig.TTL,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public: login trades a password for a session credential, and
		// token validation is usable by resource servers without a
		// credential of their own.
		r.Post("/auth/login", h.Login)
		r.Post("/credentials/validate", h.ValidateCredential)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/auth/change-password", h.ChangePassword)
			r.Get("/auth/me", h.GetCurrentUser)

			// Authorization decision point
			r.Post("/access/check", h.CheckAccess)

			// Role management
			r.Route("/roles", func(r chi.Router) {
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionRead)).Get("/", h.ListRoles)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionRead)).Get("/{roleID}", h.GetRole)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionCreate)).Post("/", h.CreateRole)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionUpdate)).Put("/{roleID}", h.UpdateRole)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionDelete)).Delete("/{roleID}", h.DeleteRole)
			})

			// Role assignments
			r.Route("/assignments", func(r chi.Router) {
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionAssign)).Post("/", h.AssignRole)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionRead)).Get("/{assignmentID}", h.GetAssignment)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionAssign)).Put("/{assignmentID}", h.UpdateAssignment)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionAssign)).Delete("/{assignmentID}", h.RemoveAssignment)
			})

			// User management
			r.Route("/users", func(r chi.Router) {
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionCreate)).Post("/", h.ProvisionUser)
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionRead)).Get("/", h.ListUsers)
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionRead)).Get("/{userID}", h.GetUser)
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionUpdate)).Put("/{userID}", h.UpdateUser)
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionUpdate)).Put("/{userID}/active", h.SetUserActive)
				r.With(h.RequirePermission(authz.ResourceUser, authz.ActionDelete)).Delete("/{userID}", h.DeleteUser)
				r.With(h.RequirePermission(authz.ResourceRole, authz.ActionRead)).Get("/{userID}/assignments", h.ListUserAssignments)
			})

			// Credential management
			r.Route("/credentials", func(r chi.Router) {
				r.With(h.RequirePermission(authz.ResourceAPI, authz.ActionCreate)).Post("/", h.IssueCredential)
				r.With(h.RequirePermission(authz.ResourceAPI, authz.ActionRead)).Get("/", h.ListCredentials)
				r.With(h.RequirePermission(authz.ResourceAPI, authz.ActionRead)).Get("/{credentialID}", h.GetCredential)
				r.With(h.RequirePermission(authz.ResourceAPI, authz.ActionDelete)).Post("/{credentialID}/revoke", h.RevokeCredential)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sentra",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a session credential. The returned
// token_value appears here and nowhere else.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	cred, token, err := h.credentialService.Create(r.Context(), credential.CreateInput{
		Name:       "session for " + user.Email,
		Type:       credential.TypeSessionToken,
		Scopes:     []string{"*"},
		TTLSeconds: int(h.sessionTTL.Seconds()),
		Metadata: credential.Metadata{
			UserID:    user.ID,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			RequestID: middleware.GetReqID(r.Context()),
		},
		CreatedBy: user.ID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session credential", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":     user.ID,
		"email":       user.Email,
		"token_value": token,
		"expires_at":  cred.ExpiresAt,
	})
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword changes the current user's password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

// GetCurrentUser returns the authenticated caller
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// CheckAccessRequest is a single authorization question.
type CheckAccessRequest struct {
	UserID       string            `json:"user_id"`
	ResourceType string            `json:"resource_type"`
	Action       string            `json:"action"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
}

// CheckAccess evaluates whether a user may perform an action. An unknown
// user yields allowed=false rather than an error: the decision endpoint is
// total over its input, like the evaluation it fronts.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req CheckAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	targetID := req.UserID
	if targetID == "" {
		targetID = GetUserID(r.Context())
	}

	check := authz.CheckRequest{
		ResourceType: authz.ResourceType(req.ResourceType),
		Action:       authz.ActionType(req.Action),
		ResourceID:   req.ResourceID,
		Context:      req.Context,
	}

	allowed := false
	user, err := h.identityService.GetUser(r.Context(), targetID)
	if err == nil {
		allowed, err = h.authzService.CheckAccess(r.Context(), user, check)
		if err != nil {
			slog.ErrorContext(r.Context(), "authorization check failed",
				logger.Error(err),
				logger.UserID(targetID),
			)
			respondError(w, http.StatusInternalServerError, "authorization check failed")
			return
		}
	}

	h.decisionMetrics.RecordAccessCheck(r.Context(), allowed, req.ResourceType)

	eventType := audit.TypeAccessDenied
	if allowed {
		eventType = audit.TypeAccessGranted
	}
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      eventType,
		ActorID:   targetID,
		Resource:  req.ResourceType,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			audit.AttrAction:     req.Action,
			audit.AttrResourceID: req.ResourceID,
		},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"allowed":       allowed,
		"user_id":       targetID,
		"resource_type": req.ResourceType,
		"action":        req.Action,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
