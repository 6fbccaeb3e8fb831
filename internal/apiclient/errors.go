// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common client failures.
var (
	// ErrRefreshFailed indicates the refresh exchange could not produce a new
	// credential. The session is lost.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrCircuitOpen indicates the circuit breaker is rejecting calls after
	// repeated transport or server failures.
	ErrCircuitOpen = errors.New("backend temporarily unavailable")

	// ErrSessionChanged indicates the session was cleared while a request
	// was waiting to be retried.
	ErrSessionChanged = errors.New("session ended while the request was in flight")

	// ErrNoToken indicates a refresh response carried no access token.
	ErrNoToken = errors.New("refresh response did not contain an access token")
)

// StatusError is a non-2xx response that the client did not repair.
type StatusError struct {
	Status  int
	Message string
	Body    []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, http.StatusText(e.Status))
}

// IsAuthFailure reports whether the status denies authorization.
func (e *StatusError) IsAuthFailure() bool {
	return isAuthFailure(e.Status)
}

// IsServerError reports whether the status is in the 5xx range.
func (e *StatusError) IsServerError() bool {
	return e.Status >= 500 && e.Status < 600
}

// NetworkError means no response was received from the backend.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: no response from backend: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// RefreshError is returned to every caller that was waiting on a failed
// refresh exchange. errors.Is(err, ErrRefreshFailed) is always true.
type RefreshError struct {
	// Cause is why the refresh exchange failed.
	Cause error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRefreshFailed, e.Cause)
}

// Unwrap exposes both the sentinel and the cause.
func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.Cause}
}

// serverMessage extracts a human-readable message from an error body. The
// backend answers with {"message": "..."} or {"error": "..."}.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// handleErrorResponse converts a non-2xx response to a StatusError.
func handleErrorResponse(status int, body []byte) error {
	return &StatusError{
		Status:  status,
		Message: serverMessage(body),
		Body:    body,
	}
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
