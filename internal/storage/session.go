// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strconv"
)

// Persisted is the raw session as found in the store.
type Persisted struct {
	Token string
	// User is the serialized identity record, empty if absent.
	User string
	// LastActive is epoch milliseconds; HasLastActive is false when the key
	// is missing or unparseable.
	LastActive    int64
	HasLastActive bool
}

// HasToken reports whether a credential is persisted.
func (p Persisted) HasToken() bool { return p.Token != "" }

// SessionStore is the session-shaped view over a Store. Session transitions
// are always single Apply calls, so the three session keys change together.
type SessionStore struct {
	store Store
}

// NewSessionStore wraps st.
func NewSessionStore(st Store) *SessionStore {
	return &SessionStore{store: st}
}

// Store returns the underlying key/value store.
func (s *SessionStore) Store() Store { return s.store }

// Load reads the persisted session.
func (s *SessionStore) Load() (Persisted, error) {
	var p Persisted
	var err error

	if p.Token, _, err = s.store.Get(KeyToken); err != nil {
		return Persisted{}, fmt.Errorf("failed to read token: %w", err)
	}
	if p.User, _, err = s.store.Get(KeyUser); err != nil {
		return Persisted{}, fmt.Errorf("failed to read user: %w", err)
	}
	raw, ok, err := s.store.Get(KeyLastActive)
	if err != nil {
		return Persisted{}, fmt.Errorf("failed to read lastActive: %w", err)
	}
	if ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			p.LastActive = ms
			p.HasLastActive = true
		}
	}
	return p, nil
}

// Token returns the persisted credential, or "" if none is held.
func (s *SessionStore) Token() (string, error) {
	tok, _, err := s.store.Get(KeyToken)
	return tok, err
}

// WriteSession persists a complete session in one atomic write.
func (s *SessionStore) WriteSession(token, userJSON string, lastActiveMs int64) error {
	return s.store.Apply(
		Put(KeyToken, token),
		Put(KeyUser, userJSON),
		Put(KeyLastActive, strconv.FormatInt(lastActiveMs, 10)),
	)
}

// ClearSession removes every session key, including the refresh cookie, in
// one atomic write.
func (s *SessionStore) ClearSession() error {
	return s.store.Apply(
		Remove(KeyToken),
		Remove(KeyUser),
		Remove(KeyLastActive),
		Remove(KeyRefreshCookie),
	)
}

// WriteToken replaces the credential only. Identity and activity are untouched.
func (s *SessionStore) WriteToken(token string) error {
	return s.store.Apply(Put(KeyToken, token))
}

// TouchActivity overwrites the last-activity timestamp.
func (s *SessionStore) TouchActivity(ms int64) error {
	return s.store.Apply(Put(KeyLastActive, strconv.FormatInt(ms, 10)))
}

// RefreshCookie returns the mirrored refresh cookie header value.
func (s *SessionStore) RefreshCookie() (string, error) {
	v, _, err := s.store.Get(KeyRefreshCookie)
	return v, err
}

// WriteRefreshCookie mirrors the refresh cookie so a restarted process can
// still refresh. An empty value removes it.
func (s *SessionStore) WriteRefreshCookie(v string) error {
	if v == "" {
		return s.store.Apply(Remove(KeyRefreshCookie))
	}
	return s.store.Apply(Put(KeyRefreshCookie, v))
}
