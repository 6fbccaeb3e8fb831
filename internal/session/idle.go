// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"
)

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity stamps the session as active now. It is a coarse liveness
// signal: every kind overwrites the same persisted timestamp. With no
// session held it does nothing.
func (m *Manager) RecordActivity(kind ActivityKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}

	nowMs := m.now().UnixMilli()
	if nowMs < m.session.LastActive {
		nowMs = m.session.LastActive
	}
	m.session.LastActive = nowMs

	if err := m.store.TouchActivity(nowMs); err != nil {
		m.log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to persist activity")
	}
}

// IdleRemaining returns how long until the session expires, or 0 when no
// session is held.
func (m *Manager) IdleRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0
	}
	idle := time.Duration(m.now().UnixMilli()-m.lastActiveLocked()) * time.Millisecond
	if remaining := m.cfg.IdleTimeout - idle; remaining > 0 {
		return remaining
	}
	return 0
}

// lastActiveLocked returns the newest activity stamp, taking activity
// recorded by other processes into account.
func (m *Manager) lastActiveLocked() int64 {
	last := m.session.LastActive
	if p, err := m.store.Load(); err == nil && p.HasLastActive && p.LastActive > last {
		last = p.LastActive
		m.session.LastActive = last
	}
	return last
}

// =============================================================================
// IDLE TICKER
// =============================================================================

// startIdleLocked starts the idle ticker if it is not already running.
func (m *Manager) startIdleLocked() {
	if m.stopIdle != nil || m.closed {
		return
	}
	stop := make(chan struct{})
	m.stopIdle = stop
	m.idleWG.Add(1)
	go m.idleLoop(stop, m.cfg.IdleCheckInterval)
}

// stopIdleLocked stops the idle ticker if it is running.
func (m *Manager) stopIdleLocked() {
	if m.stopIdle == nil {
		return
	}
	close(m.stopIdle)
	m.stopIdle = nil
}

func (m *Manager) idleLoop(stop <-chan struct{}, interval time.Duration) {
	defer m.idleWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.checkIdle() {
				return
			}
		}
	}
}

// checkIdle ends the session if it has been idle past the timeout. It
// reports whether the session was ended.
func (m *Manager) checkIdle() bool {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return true
	}
	idle := m.now().UnixMilli() - m.lastActiveLocked()
	m.mu.Unlock()

	if idle <= m.cfg.IdleTimeout.Milliseconds() {
		return false
	}

	m.log.Info().Dur("idle", time.Duration(idle)*time.Millisecond).Msg("session idle timeout")
	m.forceLogout(context.Background(), "idle timeout", true)
	return true
}
