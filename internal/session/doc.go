// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the login session with idle timeout.
//
// The Manager is the only writer of session state. It logs users in and out,
// restores the persisted session at startup and expires it after a period
// without user activity. Expiry is checked at startup and by a background
// ticker while a credential is held.
//
// # Key Types
//
//   - Manager: login/logout lifecycle, idle policy, state publication
//   - Session: credential, identity and last-activity timestamp
//   - Identity: user id, username, role and avatar reference
//   - LoginError: display-ready login failure
//
// # Usage
//
//	mgr := session.NewManager(session.DefaultConfig(), creds, client).
//	    WithLogger(log)
//	defer mgr.Close()
//
//	if err := mgr.Init(ctx); err != nil {
//	    return err
//	}
//	if err := mgr.Login(ctx, "alice", password); err != nil {
//	    fmt.Println(mgr.LastError())
//	}
//
// Record activity on every user input:
//
//	mgr.RecordActivity(session.ActivityKey)
//
// # Idle Timeout
//
// Default timeout is 15 minutes, checked every 30 seconds. Idle expiry is a
// silent logout: no notification is shown.
package session
