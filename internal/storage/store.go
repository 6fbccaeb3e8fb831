// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Persisted keys.
const (
	KeyToken         = "token"
	KeyUser          = "user"
	KeyLastActive    = "lastActive"
	KeyRefreshCookie = "refreshCookie"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage: store is closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// Op is one mutation inside an atomic Apply.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// Put returns an Op that sets key to value.
func Put(key, value string) Op { return Op{Key: key, Value: value} }

// Remove returns an Op that deletes key.
func Remove(key string) Op { return Op{Key: key, Delete: true} }

// Store is a string key/value space that survives process restarts
// (except MemoryStore).
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Apply performs all ops atomically: either every op is visible
	// afterwards or none is.
	Apply(ops ...Op) error

	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string

	// Encrypt wraps the backend in a SealedStore keyed by KeyPath.
	Encrypt bool
	KeyPath string

	Logger *zerolog.Logger
}

// Open constructs the backend described by opts.
func Open(opts Options) (Store, error) {
	var (
		st  Store
		err error
	)

	switch strings.ToLower(opts.Backend) {
	case BackendMemory, "":
		st = NewMemoryStore()
	case BackendFile:
		st, err = NewFileStore(opts.Path)
	case BackendSQLite:
		st, err = NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.Encrypt {
		key, kerr := LoadOrCreateKey(opts.KeyPath)
		if kerr != nil {
			st.Close()
			return nil, kerr
		}
		sealed, serr := NewSealedStore(st, key)
		if serr != nil {
			st.Close()
			return nil, serr
		}
		st = sealed
	}

	if opts.Logger != nil {
		opts.Logger.Debug().
			Str("backend", opts.Backend).
			Str("path", opts.Path).
			Bool("encrypted", opts.Encrypt).
			Msg("session store opened")
	}
	return st, nil
}
