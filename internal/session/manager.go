// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
	"github.com/jeranaias/crcafe-cli/internal/logging"
	"github.com/jeranaias/crcafe-cli/internal/storage"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// AuthClient is the part of the HTTP client the Manager depends on.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (*apiclient.Response, error)
	Logout(ctx context.Context) error
	OnAuthLost(fn func(err error)) (unsubscribe func())
	OnTokenRefreshed(fn func(token string)) (unsubscribe func())
}

// Notifier shows a short user-visible message.
type Notifier interface {
	Notify(msg string)
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	ToLogin()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(msg string) { f(msg) }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

// ToLogin implements Navigator.
func (f NavigatorFunc) ToLogin() { f() }

// MsgLoggedOut is shown after an explicit logout with notify set.
const MsgLoggedOut = "Logged out successfully"

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Config holds configuration for the session manager.
type Config struct {
	// IdleTimeout is how long a session may go without activity (default: 15 minutes)
	IdleTimeout time.Duration

	// IdleCheckInterval is how often a live session is checked (default: 30 seconds)
	IdleCheckInterval time.Duration

	// LogoutTimeout bounds the best-effort backend logout call (default: 5 seconds)
	LogoutTimeout time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       15 * time.Minute,
		IdleCheckInterval: 30 * time.Second,
		LogoutTimeout:     5 * time.Second,
	}
}

// Manager owns the session. It is the only writer of session state apart
// from the client's refresh, which replaces the token key alone.
type Manager struct {
	cfg    Config
	store  *storage.SessionStore
	client AuthClient
	log    zerolog.Logger
	now    func() time.Time

	notifier  Notifier
	navigator Navigator

	mu       sync.Mutex
	session  *Session
	loading  bool
	lastErr  string
	stopIdle chan struct{}
	closed   bool

	idleWG sync.WaitGroup

	unsubscribe []func()
	subs        listeners
}

// NewManager creates a session manager and subscribes it to the client's
// authorization signals. Call Init to restore the persisted session.
func NewManager(cfg Config, store *storage.SessionStore, client AuthClient) *Manager {
	defaults := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.IdleCheckInterval <= 0 {
		cfg.IdleCheckInterval = defaults.IdleCheckInterval
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = defaults.LogoutTimeout
	}

	m := &Manager{
		cfg:     cfg,
		store:   store,
		client:  client,
		log:     logging.Nop(),
		now:     time.Now,
		loading: true,
	}
	m.unsubscribe = append(m.unsubscribe,
		client.OnAuthLost(m.handleAuthLost),
		client.OnTokenRefreshed(m.handleTokenRefreshed),
	)
	return m
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(log zerolog.Logger) *Manager {
	m.log = logging.Component(log, "session")
	return m
}

// WithClock replaces the wall clock. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithNotifier sets where logout notifications go.
func (m *Manager) WithNotifier(n Notifier) *Manager {
	m.notifier = n
	return m
}

// WithNavigator sets how the user is sent back to login after the session
// is lost.
func (m *Manager) WithNavigator(n Navigator) *Manager {
	m.navigator = n
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// =============================================================================
// STARTUP
// =============================================================================

// Init restores the persisted session. A persisted session idle for longer
// than the timeout is cleared instead, silently. Loading is false once Init
// returns, whatever the outcome.
func (m *Manager) Init(ctx context.Context) error {
	p, err := m.store.Load()
	if err != nil {
		m.finishLoading()
		return fmt.Errorf("failed to load session: %w", err)
	}

	nowMs := m.now().UnixMilli()

	if p.HasToken() && p.HasLastActive && nowMs-p.LastActive > m.cfg.IdleTimeout.Milliseconds() {
		m.log.Info().
			Dur("idle", time.Duration(nowMs-p.LastActive)*time.Millisecond).
			Msg("persisted session expired while away")
		m.bestEffortBackendLogout(ctx)
		if err := m.store.ClearSession(); err != nil {
			m.log.Error().Err(err).Msg("failed to clear expired session")
		}
		m.finishLoading()
		return nil
	}

	if p.HasToken() {
		sess, err := m.restore(p, nowMs)
		if err != nil {
			m.log.Warn().Err(err).Msg("discarding unreadable persisted session")
			if cerr := m.store.ClearSession(); cerr != nil {
				m.log.Error().Err(cerr).Msg("failed to clear unreadable session")
			}
		} else {
			m.mu.Lock()
			m.session = sess
			m.startIdleLocked()
			m.mu.Unlock()
			m.log.Debug().
				Str("user", sess.Identity.Username).
				Str("credential", logging.Fingerprint(sess.Token)).
				Msg("session restored")
		}
	}

	m.finishLoading()
	return nil
}

// restore rebuilds a Session from persisted state. A missing last-activity
// stamp starts the idle clock now.
func (m *Manager) restore(p storage.Persisted, nowMs int64) (*Session, error) {
	var id Identity
	if p.User != "" {
		if err := json.Unmarshal([]byte(p.User), &id); err != nil {
			return nil, fmt.Errorf("invalid persisted user: %w", err)
		}
	}
	last := p.LastActive
	if !p.HasLastActive {
		last = nowMs
		if err := m.store.TouchActivity(last); err != nil {
			return nil, err
		}
	}
	return &Session{Token: p.Token, Identity: id, LastActive: last}, nil
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.publish()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Current returns a copy of the session and whether one is held.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Loading reports whether Init has not yet finished.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// LastError returns the display message of the last failed login, or "".
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// State returns the published view of the manager.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	st := State{Loading: m.loading}
	if m.session != nil {
		cp := *m.session
		st.Session = &cp
	}
	return st
}

// RequireSession returns the session or ErrNotLoggedIn.
func (m *Manager) RequireSession() (Session, error) {
	s, ok := m.Current()
	if !ok {
		return Session{}, ErrNotLoggedIn
	}
	return s, nil
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login performs the login exchange. On success the session is stored in
// memory and persisted, and the idle clock starts. On failure the existing
// session, if any, is left untouched and the returned *LoginError carries a
// display-ready message that LastError also reports.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	m.lastErr = ""
	m.mu.Unlock()

	resp, err := m.client.Login(ctx, username, password)
	if err != nil {
		return m.loginFailed(classifyLoginError(err))
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		return m.loginFailed(&LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: err})
	}
	if payload.Token == "" {
		return m.loginFailed(&LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: errors.New("login response without token")})
	}
	id, err := payload.identity()
	if err != nil {
		return m.loginFailed(&LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: err})
	}

	userJSON, err := json.Marshal(id)
	if err != nil {
		return m.loginFailed(&LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: err})
	}

	m.mu.Lock()
	nowMs := m.now().UnixMilli()
	if err := m.store.WriteSession(payload.Token, string(userJSON), nowMs); err != nil {
		m.mu.Unlock()
		return m.loginFailed(&LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: err})
	}
	m.session = &Session{Token: payload.Token, Identity: id, LastActive: nowMs}
	m.startIdleLocked()
	m.mu.Unlock()

	m.log.Info().
		Str("user", id.Username).
		Str("role", string(id.Role)).
		Str("credential", logging.Fingerprint(payload.Token)).
		Msg("logged in")
	m.publish()
	return nil
}

func (m *Manager) loginFailed(le *LoginError) error {
	m.mu.Lock()
	m.lastErr = le.Message
	m.mu.Unlock()
	m.log.Warn().Err(le.Err).Int("kind", int(le.Kind)).Msg("login failed")
	return le
}

// Logout ends the session. The backend call is best effort; local state is
// always cleared. With no session held Logout does nothing at all.
func (m *Manager) Logout(ctx context.Context, notify bool) {
	m.mu.Lock()
	held := m.session != nil
	m.mu.Unlock()
	if !held {
		if tok, err := m.store.Token(); err != nil || tok == "" {
			return
		}
	}

	m.bestEffortBackendLogout(ctx)
	m.clear("logout")

	if notify && m.notifier != nil {
		m.notifier.Notify(MsgLoggedOut)
	}
}

// forceLogout is logout without a notification. It reports whether a
// session was actually ended.
func (m *Manager) forceLogout(ctx context.Context, reason string, callBackend bool) bool {
	m.mu.Lock()
	held := m.session != nil
	m.mu.Unlock()
	if !held {
		return false
	}
	if callBackend {
		m.bestEffortBackendLogout(ctx)
	}
	return m.clear(reason)
}

// clear drops the in-memory session, stops the idle ticker and clears
// persisted state. It reports whether an in-memory session existed.
func (m *Manager) clear(reason string) bool {
	m.mu.Lock()
	held := m.session != nil
	m.session = nil
	m.stopIdleLocked()
	if err := m.store.ClearSession(); err != nil {
		m.log.Error().Err(err).Msg("failed to clear persisted session")
	}
	m.mu.Unlock()

	m.log.Info().Str("reason", reason).Msg("session ended")
	m.publish()
	return held
}

func (m *Manager) bestEffortBackendLogout(ctx context.Context) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.LogoutTimeout)
	defer cancel()
	if err := m.client.Logout(lctx); err != nil {
		m.log.Debug().Err(err).Msg("backend logout failed, continuing")
	}
}

// =============================================================================
// CLIENT SIGNALS
// =============================================================================

// handleAuthLost runs when the client's refresh failed irrecoverably.
func (m *Manager) handleAuthLost(err error) {
	m.log.Warn().Err(err).Msg("authorization lost")
	if !m.forceLogout(context.Background(), "refresh failed", false) {
		return
	}
	if m.navigator != nil {
		m.navigator.ToLogin()
	}
}

// handleTokenRefreshed adopts a refreshed credential. Identity is untouched.
func (m *Manager) handleTokenRefreshed(token string) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	m.session.Token = token
	m.mu.Unlock()
	m.publish()
}

// =============================================================================
// CROSS-PROCESS SYNC
// =============================================================================

// Sync reconciles memory with persisted state after another process changed
// it. A removed credential ends this session silently; a new or replaced
// credential is adopted.
func (m *Manager) Sync() error {
	p, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	changed := false
	lost := false
	switch {
	case m.session != nil && !p.HasToken():
		m.session = nil
		m.stopIdleLocked()
		changed, lost = true, true

	case p.HasToken():
		var id Identity
		if p.User != "" {
			if err := json.Unmarshal([]byte(p.User), &id); err != nil {
				m.mu.Unlock()
				return fmt.Errorf("invalid persisted user: %w", err)
			}
		}
		if m.session == nil {
			last := p.LastActive
			if !p.HasLastActive {
				last = m.now().UnixMilli()
			}
			m.session = &Session{Token: p.Token, Identity: id, LastActive: last}
			m.startIdleLocked()
			changed = true
		} else {
			if m.session.Token != p.Token || m.session.Identity != id {
				m.session.Token = p.Token
				m.session.Identity = id
				changed = true
			}
			if p.HasLastActive && p.LastActive > m.session.LastActive {
				m.session.LastActive = p.LastActive
			}
		}
	}
	m.mu.Unlock()

	if lost {
		m.log.Info().Msg("session ended by another process")
	}
	if changed {
		m.publish()
	}
	return nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to receive every state change. The returned
// function unregisters it.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.subs.add(fn)
}

func (m *Manager) publish() {
	m.subs.emit(m.State())
}

type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(State)
	order  []int
}

func (l *listeners) add(fn func(State)) func() {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[int]func(State))
	}
	l.nextID++
	id := l.nextID
	l.fns[id] = fn
	l.order = append(l.order, id)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) emit(st State) {
	l.mu.Lock()
	fns := make([]func(State), 0, len(l.fns))
	live := l.order[:0]
	for _, id := range l.order {
		if fn, ok := l.fns[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	l.order = live
	l.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// =============================================================================
// TEARDOWN
// =============================================================================

// Close stops the idle ticker and unsubscribes from the client. The
// session itself is left persisted.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopIdleLocked()
	unsubs := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	m.idleWG.Wait()
	return nil
}
