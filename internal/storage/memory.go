// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryStore is an in-process Store. It keeps a log of applied ops so tests
// can assert exactly which writes happened.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	log    []Op
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Apply implements Store.
func (m *MemoryStore) Apply(ops ...Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, op := range ops {
		if op.Delete {
			delete(m.data, op.Key)
		} else {
			m.data[op.Key] = op.Value
		}
		m.log = append(m.log, op)
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Ops returns a copy of every op applied so far.
func (m *MemoryStore) Ops() []Op {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Op, len(m.log))
	copy(out, m.log)
	return out
}

// ResetOps clears the op log without touching data.
func (m *MemoryStore) ResetOps() {
	m.mu.Lock()
	m.log = nil
	m.mu.Unlock()
}

// Snapshot returns a copy of the stored data.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
