// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package apperr defines the centralized error handling framework for the Lumina client.

It provides a rich error type that bridges the gap between low-level transport
failures and the stable, user-presentable reasons the application shell renders.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Local validation, remote rejection, session expiry, and network failure
    are distinguishable by code so callers can branch without string matching.
  - Mapping: Explicit mapping from remote HTTP status classes to AppError values.

Every error that leaves the session layer is wrapped as an [AppError] to ensure
the caller always has a presentable reason string.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

const (
	// CodeValidation marks local, pre-network field validation failures.
	CodeValidation = "VALIDATION_ERROR"

	// CodeUnauthorized marks 401-class rejections from the remote service.
	CodeUnauthorized = "UNAUTHORIZED"

	// CodeSessionExpired marks an unrecoverable token renewal failure.
	// Receiving it means the local session has already been torn down.
	CodeSessionExpired = "SESSION_EXPIRED"

	// CodeRemoteRejected marks any other HTTP-level rejection by the service.
	CodeRemoteRejected = "REMOTE_REJECTED"

	// CodeNetwork marks connectivity failures where no response was received.
	CodeNetwork = "NETWORK_ERROR"

	// CodeInternal marks unexpected client-side failures.
	CodeInternal = "INTERNAL_ERROR"
)

// AppError is the canonical error type for the Lumina client.
//
// It carries a machine-readable code, a message safe to present to the user,
// and an optional slice of field-level validation errors.
//
// # Presentation
//
// Message is always populated: remote rejections surface the server-supplied
// reason verbatim, with a generic fallback when the payload carried none.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "VALIDATION_ERROR").
	Code string `json:"code"`
	// Message is a human-readable description safe to present to the user.
	Message string `json:"error"`
	// HTTPStatus is the status reported by the remote service, or 0 for
	// purely local failures.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, kept for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR values.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the presentable message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Local Errors

// ValidationError creates a local validation [AppError] with per-field details.
// Validation errors never reach the network.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: msg,
		Details: details,
	}
}

// Internal creates an [AppError] wrapping an unexpected client-side failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "An unexpected error occurred",
		Cause:   cause,
	}
}

// # Remote Errors

// Unauthorized creates a 401-class [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// SessionExpired creates an [AppError] reporting that token renewal failed
// and the local session was cleared.
func SessionExpired(cause error) *AppError {
	return &AppError{
		Code:       CodeSessionExpired,
		Message:    "Your session has expired. Please sign in again.",
		HTTPStatus: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// RemoteRejected creates an [AppError] carrying the server-supplied reason.
//
// # Fallback
//
// Remote payloads are not always well-formed; an empty msg is replaced with
// a generic description so the caller never renders a blank reason.
func RemoteRejected(status int, msg string) *AppError {
	if msg == "" {
		msg = "Request rejected by the service"
	}
	return &AppError{
		Code:       CodeRemoteRejected,
		Message:    msg,
		HTTPStatus: status,
	}
}

// Network creates an [AppError] for connectivity failures.
func Network(cause error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "Unable to reach the service. Check your connection and try again.",
		Cause:   cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
