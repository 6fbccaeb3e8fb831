// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from its own credential. The
// signature is not verified: the credential is opaque to the client and
// this is for display only.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carries an exp claim.
func (t TokenInfo) HasExpiry() bool { return !t.ExpiresAt.IsZero() }

// ExpiresIn returns the time left before exp, relative to now.
func (t TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if !t.HasExpiry() {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// InspectToken decodes the claims of a JWT credential without verifying it.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("credential is not a readable JWT: %w", err)
	}

	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	return info, nil
}
