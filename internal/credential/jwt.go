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
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues access_token credentials as signed JWTs. The JWT is
// only an envelope: validation still resolves the token through the stored
// record by hash, so the authorization decision stays signature-agnostic.
// The jti claim carries the credential id for external introspection.
type TokenSigner struct {
	key    []byte
	issuer string
}

// NewTokenSigner creates a signer from an HS256 key. The key must be at
// least 32 bytes.
func NewTokenSigner(key []byte, issuer string) (*TokenSigner, error) {
	if len(key) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	return &TokenSigner{key: key, issuer: issuer}, nil
}

// Sign produces the token value for an access_token credential.
func (ts *TokenSigner) Sign(cred *Credential) (string, error) {
	claims := jwt.MapClaims{
		"iss":    ts.issuer,
		"sub":    cred.subjectID(),
		"jti":    cred.ID,
		"iat":    cred.CreatedAt.Unix(),
		"exp":    cred.ExpiresAt.Unix(),
		"scopes": cred.Scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a signed token and returns its claims. Used by external
// consumers that want to inspect an access token without a service call;
// the credential service itself never trusts claims over the stored record.
func (ts *TokenSigner) Parse(tokenValue string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenValue, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.key, nil
	}, jwt.WithIssuer(ts.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
