// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the crcafe command-line interface.
//
// Every command shares one bootstrap: configuration, logging, the session
// store, the authenticated client and the session manager are built once per
// invocation by newApp and torn down when the command returns.
//
// # Commands Overview
//
//   - auth: login, logout, status
//   - items: list, add, remove, price, availability
//   - order: create, bill, count
//   - dashboard: summary, top-items, revenue, transactions, cashiers,
//     performance, payment-modes
//   - users: list, add
//   - config: show, path, init
//   - shell: interactive session with idle logout
//
// All commands support --json for machine-readable output.
package cli
