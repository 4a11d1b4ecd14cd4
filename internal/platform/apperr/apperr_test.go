// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
)

/*
TestConstructors verifies the code, status, and message of every error
constructor.
*/
func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name       string
		err        *apperr.AppError
		wantCode   string
		wantStatus int
	}{
		{"validation", apperr.ValidationError("Validation failed"), apperr.CodeValidation, 0},
		{"internal", apperr.Internal(cause), apperr.CodeInternal, 0},
		{"unauthorized", apperr.Unauthorized("Authentication required"), apperr.CodeUnauthorized, http.StatusUnauthorized},
		{"session_expired", apperr.SessionExpired(cause), apperr.CodeSessionExpired, http.StatusUnauthorized},
		{"remote_rejected", apperr.RemoteRejected(http.StatusConflict, "Email is already registered"), apperr.CodeRemoteRejected, http.StatusConflict},
		{"network", apperr.Network(cause), apperr.CodeNetwork, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
			assert.Equal(t, tt.err.Message, tt.err.Error())
		})
	}
}

/*
TestRemoteRejected_Fallback verifies the generic message fallback for
malformed remote payloads.
*/
func TestRemoteRejected_Fallback(t *testing.T) {
	err := apperr.RemoteRejected(http.StatusBadGateway, "")
	assert.Equal(t, "Request rejected by the service", err.Message)

	err = apperr.RemoteRejected(http.StatusBadRequest, "Invalid or expired OTP")
	assert.Equal(t, "Invalid or expired OTP", err.Message)
}

/*
TestUnwrap verifies cause-chain traversal via errors.Is and errors.As.
*/
func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Network(cause)

	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("transport_do_failed: %w", err)

	var ae *apperr.AppError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, apperr.CodeNetwork, ae.Code)
}

/*
TestHelpers covers IsAppError, As, and HasCode against both AppError and
plain error values.
*/
func TestHelpers(t *testing.T) {
	plain := errors.New("plain")
	app := apperr.Unauthorized("Authentication required")

	assert.False(t, apperr.IsAppError(plain))
	assert.True(t, apperr.IsAppError(app))

	assert.Nil(t, apperr.As(plain))
	require.NotNil(t, apperr.As(app))

	assert.True(t, apperr.HasCode(app, apperr.CodeUnauthorized))
	assert.False(t, apperr.HasCode(app, apperr.CodeNetwork))
	assert.False(t, apperr.HasCode(plain, apperr.CodeUnauthorized))

	// Wrapping must not hide the code.
	wrapped := fmt.Errorf("session_login_failed: %w", app)
	assert.True(t, apperr.HasCode(wrapped, apperr.CodeUnauthorized))
}
