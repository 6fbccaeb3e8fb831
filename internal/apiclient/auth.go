// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apiclient

import (
	"context"
	"net/http"
)

// Credentials is the login exchange body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login performs the login exchange. A 401/403 here means bad credentials,
// so it is returned as a *StatusError rather than triggering a refresh.
func (c *Client) Login(ctx context.Context, username, password string) (*Response, error) {
	return c.Send(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      Credentials{Username: username, Password: password},
		Anonymous: true,
		NoRefresh: true,
	})
}

// Logout tells the backend to revoke the refresh artifact. It is best
// effort: the in-memory cookies are dropped whatever the outcome, and the
// error is returned only for logging.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Send(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/logout",
		NoRefresh: true,
	})
	c.resetCookies()
	return err
}
