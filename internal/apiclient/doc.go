// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apiclient provides the authenticated HTTP client for the CR Cafe
// backend API.
//
// Every request carries the current bearer credential. When the backend
// answers 401 or 403 the client repairs the session with a single refresh
// exchange and re-issues the request; concurrent requests that hit the same
// expiry wait for that one exchange instead of starting their own.
//
// # Key Types
//
//   - Client: request dispatch, credential attach and refresh coordination
//   - Request / Response: method, path, params, JSON body and raw reply
//   - StatusError: any non-2xx answer that was not repaired
//   - NetworkError: no response was received
//   - RefreshError: the refresh exchange failed and the session is lost
//
// # Usage
//
//	creds := storage.NewSessionStore(st)
//	client := apiclient.New(cfg.API.BaseURL, creds).
//	    WithLogger(log).
//	    WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst)
//	unsubscribe := client.OnAuthLost(func(err error) { ... })
//	defer unsubscribe()
//
//	var items []pos.Item
//	err := client.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: "/items"}, &items)
//
// # Security
//
// Credentials are never logged. Log lines carry a short fingerprint of the
// token instead.
package apiclient
