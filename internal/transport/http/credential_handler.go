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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sentra-access/sentra/internal/credential"
)

// IssueCredentialRequest represents a credential issuance request
type IssueCredentialRequest struct {
	Name       string   `json:"name"`
	Type       string   `json:"credential_type"`
	Scopes     []string `json:"scopes"`
	TTLSeconds int      `json:"ttl_seconds"`
	UserID     string   `json:"user_id,omitempty"`
	ServiceID  string   `json:"service_id,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
}

// IssueCredential creates a new credential. The response carries the raw
// token_value exactly once; every later read returns the record without it.
func (h *Handler) IssueCredential(w http.ResponseWriter, r *http.Request) {
	var req IssueCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subjectID := req.UserID
	if subjectID == "" && req.ServiceID == "" {
		subjectID = GetUserID(r.Context())
	}

	cred, token, err := h.credentialService.Create(r.Context(), credential.CreateInput{
		Name:       req.Name,
		Type:       credential.Type(req.Type),
		Scopes:     req.Scopes,
		TTLSeconds: req.TTLSeconds,
		Metadata: credential.Metadata{
			UserID:    subjectID,
			ServiceID: req.ServiceID,
			ClientID:  req.ClientID,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			RequestID: middleware.GetReqID(r.Context()),
		},
		CreatedBy: GetUserID(r.Context()),
	})
	if err != nil {
		respondCredentialError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"credential":  cred.ToResponse(time.Now()),
		"token_value": token,
	})
}

// GetCredential retrieves a credential record by ID
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentialService.Get(r.Context(), chi.URLParam(r, "credentialID"))
	if err != nil {
		respondCredentialError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cred.ToResponse(time.Now()))
}

// ListCredentials retrieves credential records. Expired and revoked entries
// are excluded unless requested via query parameters.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	includeExpired := r.URL.Query().Get("include_expired") == "true"
	includeRevoked := r.URL.Query().Get("include_revoked") == "true"

	creds, err := h.credentialService.List(r.Context(), includeExpired, includeRevoked)
	if err != nil {
		respondCredentialError(w, err)
		return
	}

	now := time.Now()
	out := make([]credential.Response, 0, len(creds))
	for _, cred := range creds {
		out = append(out, cred.ToResponse(now))
	}

	respondJSON(w, http.StatusOK, map[string]any{"credentials": out})
}

// RevokeCredentialRequest carries the optional revocation reason
type RevokeCredentialRequest struct {
	Reason string `json:"reason"`
}

// RevokeCredential revokes a credential. Revoking an already-revoked
// credential succeeds without effect.
func (h *Handler) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	var req RevokeCredentialRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err := h.credentialService.Revoke(r.Context(), chi.URLParam(r, "credentialID"), GetUserID(r.Context()), req.Reason)
	if err != nil {
		respondCredentialError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "credential revoked",
	})
}

// ValidateCredentialRequest represents a token validation request
type ValidateCredentialRequest struct {
	TokenValue     string   `json:"token_value"`
	RequiredScopes []string `json:"required_scopes,omitempty"`
}

// ValidateCredential resolves a raw token and reports whether it is usable
// for the required scopes. Always 200: invalidity is a result, not an error.
func (h *Handler) ValidateCredential(w http.ResponseWriter, r *http.Request) {
	var req ValidateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.credentialService.Validate(r.Context(), req.TokenValue, req.RequiredScopes)
	h.decisionMetrics.RecordTokenValidation(r.Context(), result.Valid)

	respondJSON(w, http.StatusOK, result)
}

// respondCredentialError maps credential domain errors onto HTTP statuses
func respondCredentialError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credential.ErrCredentialNotFound):
		respondError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, credential.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
