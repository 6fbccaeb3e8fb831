// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
)

// ListUsers returns every backend user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.get(ctx, "/users", nil, &out)
	return out, err
}

// CreateUser registers a user. Role must already be normalised by the
// caller (OWNER, MANAGER or WORKER).
func (s *Service) CreateUser(ctx context.Context, u NewUser) (User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || u.Password == "" {
		return User{}, fmt.Errorf("username and password are required")
	}
	if u.Role == "" {
		return User{}, fmt.Errorf("role is required")
	}

	var created User
	err := s.do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/users", Body: u}, &created)
	return created, err
}
