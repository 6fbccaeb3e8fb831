// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error classification for crcafe commands.
//
// Commands always return errors; Execute decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
	"github.com/jeranaias/crcafe-cli/internal/config"
	"github.com/jeranaias/crcafe-cli/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not logged in or the session ended
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad flag or argument.
type UsageError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ConfigError wraps a failure to load or save configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usage  *UsageError
		cfgErr *ConfigError
		valErr config.ValidateErrors
		login  *session.LoginError
		status *apiclient.StatusError
		netErr *apiclient.NetworkError
	)

	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ExitConfigError
	case errors.Is(err, session.ErrNotLoggedIn), errors.Is(err, apiclient.ErrRefreshFailed),
		errors.Is(err, apiclient.ErrSessionChanged):
		return ExitAuthError
	case errors.As(err, &login):
		if login.Kind == session.LoginUnreachable {
			return ExitNetworkError
		}
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr):
		return ExitNetworkError
	case errors.As(err, &status):
		switch {
		case status.Status == 404:
			return ExitNotFoundError
		case status.IsAuthFailure():
			return ExitAuthError
		}
	}
	return ExitGeneralError
}

// userMessage renders err for a human. Transport details stay in the debug
// log.
func userMessage(err error) string {
	var (
		login  *session.LoginError
		status *apiclient.StatusError
		netErr *apiclient.NetworkError
	)
	switch {
	case errors.As(err, &login):
		return login.Message
	case errors.Is(err, apiclient.ErrRefreshFailed):
		return "your session has expired, please log in again"
	case errors.Is(err, apiclient.ErrSessionChanged):
		return "you were logged out, please log in again"
	case errors.Is(err, apiclient.ErrCircuitOpen):
		return "the server is failing repeatedly, try again shortly"
	case errors.As(err, &netErr):
		return session.MsgUnreachable
	case errors.As(err, &status) && status.Message != "":
		return status.Message
	}
	return err.Error()
}
