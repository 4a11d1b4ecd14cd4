// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
	"github.com/lumina-labs/lumina-go/internal/session"
)

// registrationHandler accepts register and verify submissions, rejecting any
// OTP other than wantOTP.
func registrationHandler(t *testing.T, wantOTP string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/register":
			_, _ = w.Write([]byte(`{"message":"OTP sent to your phone","phone_number":"+919876543210","temp_id":"t1"}`))
		case "/auth/verify-registration":
			var sent map[string]string
			require.NoError(t, decodeJSON(r, &sent))
			if sent["otp_code"] != wantOTP {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"Invalid or expired OTP"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(authBody("issued-access", "issued-refresh"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
}

/*
TestRegistrationFlow_HappyPath walks collecting → awaiting_otp → verified and
checks the pending submission lifecycle along the way.
*/
func TestRegistrationFlow_HappyPath(t *testing.T) {
	r := newRig(t, registrationHandler(t, "123456"))
	flow := session.NewRegistrationFlow(r.client)

	assert.Equal(t, session.StateCollecting, flow.State())
	assert.Nil(t, flow.Pending())

	receipt, err := flow.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", receipt.PhoneNumber)
	assert.Equal(t, session.StateAwaitingOTP, flow.State())

	pending := flow.Pending()
	require.NotNil(t, pending)
	assert.Equal(t, "asha@lumina.io", pending.Email)

	require.NoError(t, flow.Verify(context.Background(), "123456"))
	assert.Equal(t, session.StateVerified, flow.State())

	// The submission is discarded exactly once, at the Verified transition.
	assert.Nil(t, flow.Pending())

	// Verification never authenticates.
	_, ok := r.store.Get(context.Background())
	assert.False(t, ok)
}

/*
TestRegistrationFlow_FailedStepsDoNotAdvance verifies that rejected
submissions and rejected codes leave the state untouched and retryable.
*/
func TestRegistrationFlow_FailedStepsDoNotAdvance(t *testing.T) {
	r := newRig(t, registrationHandler(t, "123456"))
	flow := session.NewRegistrationFlow(r.client)

	// 1. Invalid submission: stays in Collecting, nothing pending
	bad := validInput()
	bad.Email = "nope"
	_, err := flow.Submit(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, session.StateCollecting, flow.State())
	assert.Nil(t, flow.Pending())

	// 2. Accepted submission
	_, err = flow.Submit(context.Background(), validInput())
	require.NoError(t, err)

	// 3. Locally invalid code: stays in AwaitingOTP, no network
	before := r.requests.Load()
	err = flow.Verify(context.Background(), "12")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	assert.Equal(t, session.StateAwaitingOTP, flow.State())
	assert.Equal(t, before, r.requests.Load())

	// 4. Remotely rejected code: stays in AwaitingOTP, pending intact
	err = flow.Verify(context.Background(), "999999")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRemoteRejected))
	assert.Equal(t, session.StateAwaitingOTP, flow.State())
	require.NotNil(t, flow.Pending())

	// 5. The retry with the right code still works
	require.NoError(t, flow.Verify(context.Background(), "123456"))
	assert.Equal(t, session.StateVerified, flow.State())
}

/*
TestRegistrationFlow_Back verifies the backwards transition: no network call,
pending fields preserved for form pre-fill.
*/
func TestRegistrationFlow_Back(t *testing.T) {
	r := newRig(t, registrationHandler(t, "123456"))
	flow := session.NewRegistrationFlow(r.client)

	_, err := flow.Submit(context.Background(), validInput())
	require.NoError(t, err)

	before := r.requests.Load()
	flow.Back()

	assert.Equal(t, session.StateCollecting, flow.State())
	assert.Equal(t, before, r.requests.Load(), "back is purely local")

	pending := flow.Pending()
	require.NotNil(t, pending, "entered fields survive the step back")
	assert.Equal(t, "Asha", pending.FirstName)

	// Back in Collecting is a no-op.
	flow.Back()
	assert.Equal(t, session.StateCollecting, flow.State())
}

/*
TestRegistrationFlow_StateMisuse verifies that operations called in the wrong
state fail with an internal error instead of issuing requests.
*/
func TestRegistrationFlow_StateMisuse(t *testing.T) {
	r := newRig(t, registrationHandler(t, "123456"))
	flow := session.NewRegistrationFlow(r.client)

	// Verify before any submission
	err := flow.Verify(context.Background(), "123456")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
	assert.Equal(t, int32(0), r.requests.Load())

	// Submit twice without going back
	_, err = flow.Submit(context.Background(), validInput())
	require.NoError(t, err)
	_, err = flow.Submit(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
}

// resetHandler accepts forgot and reset submissions, rejecting any OTP other
// than wantOTP.
func resetHandler(t *testing.T, wantOTP string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/forgot-password":
			_, _ = w.Write([]byte(`{"message":"OTP sent to your phone"}`))
		case "/auth/reset-password":
			var sent map[string]string
			require.NoError(t, decodeJSON(r, &sent))
			if sent["otp_code"] != wantOTP {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"Invalid or expired OTP"}`))
				return
			}
			_, _ = w.Write([]byte(`{"message":"Password reset successfully"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
}

/*
TestResetFlow_HappyPath walks requesting_code → awaiting_reset → done.
*/
func TestResetFlow_HappyPath(t *testing.T) {
	r := newRig(t, resetHandler(t, "654321"))
	flow := session.NewResetFlow(r.client)

	assert.Equal(t, session.StateRequestingCode, flow.State())

	message, err := flow.Request(context.Background(), "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent to your phone", message)
	assert.Equal(t, session.StateAwaitingReset, flow.State())
	assert.Equal(t, "+919876543210", flow.PhoneNumber())

	message, err = flow.Confirm(context.Background(), "654-321", "NewPassw0rd")
	require.NoError(t, err)
	assert.Equal(t, "Password reset successfully", message)
	assert.Equal(t, session.StateDone, flow.State())
}

/*
TestResetFlow_FailedStepsDoNotAdvance mirrors the registration guarantee for
the recovery flow.
*/
func TestResetFlow_FailedStepsDoNotAdvance(t *testing.T) {
	r := newRig(t, resetHandler(t, "654321"))
	flow := session.NewResetFlow(r.client)

	// Invalid phone: local failure, still requesting
	_, err := flow.Request(context.Background(), "12345")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	assert.Equal(t, session.StateRequestingCode, flow.State())
	assert.Equal(t, int32(0), r.requests.Load())

	_, err = flow.Request(context.Background(), "+919876543210")
	require.NoError(t, err)

	// Weak password: local failure, still awaiting
	_, err = flow.Confirm(context.Background(), "654321", "alllower1")
	require.Error(t, err)
	assert.Equal(t, session.StateAwaitingReset, flow.State())

	// Wrong code: remote failure, still awaiting and retryable
	_, err = flow.Confirm(context.Background(), "111111", "NewPassw0rd")
	require.Error(t, err)
	assert.Equal(t, session.StateAwaitingReset, flow.State())

	_, err = flow.Confirm(context.Background(), "654321", "NewPassw0rd")
	require.NoError(t, err)
	assert.Equal(t, session.StateDone, flow.State())
}

/*
TestResetFlow_Back verifies the local step back and its phone retention.
*/
func TestResetFlow_Back(t *testing.T) {
	r := newRig(t, resetHandler(t, "654321"))
	flow := session.NewResetFlow(r.client)

	_, err := flow.Request(context.Background(), "+919876543210")
	require.NoError(t, err)

	before := r.requests.Load()
	flow.Back()

	assert.Equal(t, session.StateRequestingCode, flow.State())
	assert.Equal(t, before, r.requests.Load(), "back is purely local")

	// Confirm is now invalid until a new request is made.
	_, err = flow.Confirm(context.Background(), "654321", "NewPassw0rd")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
}
