// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the crcafe session between runs.
//
// A Store is a small string key/value space. Every backend supports atomic
// multi-key application (Apply), so a session is either fully written or
// fully cleared, never half of each.
//
// # Backends
//
//   - MemoryStore: in-process map, records every mutation (tests, --store memory)
//   - FileStore: JSON document written with write-temp-fsync-rename
//   - SQLiteStore: single key/value table in a pure Go SQLite database
//   - SealedStore: wraps any Store and encrypts values at rest
//
// # Session Keys
//
// SessionStore layers typed access over the three session keys (token, user,
// lastActive) and the refresh cookie. Watch reports changes made to a file
// backed store by another process.
package storage
