// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the user's authorization level. The session carries it but never
// enforces it.
type Role string

// Roles known to the backend.
const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleWorker  Role = "WORKER"
)

// ParseRole accepts "WORKER" or Spring-style "ROLE_WORKER".
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ROLE_"))
	switch r {
	case RoleOwner, RoleManager, RoleWorker:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the logged-in user.
type Identity struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Role            Role   `json:"role"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Session is the authenticated state. It exists only while a credential is
// held.
type Session struct {
	Token    string
	Identity Identity
	// LastActive is epoch milliseconds and never decreases while the
	// session is live.
	LastActive int64
}

// State is what the Manager publishes to subscribers.
type State struct {
	// Session is nil when logged out.
	Session *Session
	// Loading is true only until Init has restored persisted state.
	Loading bool
}

// Authenticated reports whether a session is held.
func (s State) Authenticated() bool { return s.Session != nil }

// ActivityKind names the user input that counts as activity.
type ActivityKind string

// Activity kinds.
const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityClick   ActivityKind = "click"
	ActivityScroll  ActivityKind = "scroll"
	ActivityUnload  ActivityKind = "unload"
)

// loginPayload is the login exchange response. The backend sends id as a
// number; older builds sent a string.
type loginPayload struct {
	Token           string          `json:"token"`
	ID              json.RawMessage `json:"id"`
	Username        string          `json:"username"`
	Role            string          `json:"role"`
	ProfileImageURL string          `json:"profileImageUrl"`
}

func (p loginPayload) identity() (Identity, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:              rawID(p.ID),
		Username:        p.Username,
		Role:            role,
		ProfileImageURL: p.ProfileImageURL,
	}, nil
}

// rawID renders a JSON number or string id as a string.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}
