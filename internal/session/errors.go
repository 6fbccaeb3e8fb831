// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("not logged in")

// LoginErrorKind classifies a login failure.
type LoginErrorKind int

// Login failure kinds.
const (
	LoginUnexpected LoginErrorKind = iota
	LoginInvalidCredentials
	LoginServerError
	LoginUnreachable
	LoginRejected
)

// Display messages for login failures.
const (
	MsgInvalidCredentials = "Invalid username or password. Please try again."
	MsgServerError        = "Server error. Please try again later."
	MsgUnreachable        = "Server unreachable. Please check your internet or try again later."
	MsgGeneric            = "Something went wrong. Please try again."
	MsgUnexpected         = "Unexpected error occurred."
)

// LoginError is a failed login with a message fit for display.
type LoginError struct {
	Kind    LoginErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *LoginError) Error() string { return e.Message }

// Unwrap returns the underlying failure.
func (e *LoginError) Unwrap() error { return e.Err }

// classifyLoginError maps a login exchange failure to a LoginError.
func classifyLoginError(err error) *LoginError {
	var se *apiclient.StatusError
	var ne *apiclient.NetworkError

	switch {
	case errors.As(err, &se):
		switch {
		case se.IsAuthFailure():
			return &LoginError{Kind: LoginInvalidCredentials, Message: MsgInvalidCredentials, Err: err}
		case se.IsServerError():
			return &LoginError{Kind: LoginServerError, Message: MsgServerError, Err: err}
		case se.Message != "":
			return &LoginError{Kind: LoginRejected, Message: se.Message, Err: err}
		default:
			return &LoginError{Kind: LoginRejected, Message: MsgGeneric, Err: err}
		}
	case errors.As(err, &ne):
		return &LoginError{Kind: LoginUnreachable, Message: MsgUnreachable, Err: err}
	default:
		return &LoginError{Kind: LoginUnexpected, Message: MsgUnexpected, Err: err}
	}
}
