// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session

import (
	"context"
	"fmt"

	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
)

// # Registration States

// RegistrationState identifies the current step of a [RegistrationFlow].
type RegistrationState int

const (
	// StateCollecting is the initial step: the caller is filling the form.
	StateCollecting RegistrationState = iota

	// StateAwaitingOTP means the submission was accepted and the service has
	// delivered a code to the submitted phone number.
	StateAwaitingOTP

	// StateVerified is terminal: the account exists but the caller is NOT
	// authenticated — route to the login flow.
	StateVerified
)

// String implements [fmt.Stringer] for logs and error messages.
func (state RegistrationState) String() string {
	switch state {
	case StateCollecting:
		return "collecting"
	case StateAwaitingOTP:
		return "awaiting_otp"
	case StateVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// RegistrationFlow is the two-step register → verify state machine.
//
// # State Safety
//
// A failed operation never advances the state: a rejected submission stays
// in Collecting, a rejected code stays in AwaitingOTP, and the caller may
// simply retry. The pending submission is held only in this struct's memory
// and is discarded exactly once, at the Verified transition.
//
// # Concurrency
//
// A flow belongs to a single form/interaction; it is not safe for concurrent
// use.
type RegistrationFlow struct {
	client  *Client
	state   RegistrationState
	pending *RegisterInput
}

// NewRegistrationFlow starts a flow in the Collecting state.
func NewRegistrationFlow(client *Client) *RegistrationFlow {
	return &RegistrationFlow{client: client, state: StateCollecting}
}

// State returns the current step.
func (flow *RegistrationFlow) State() RegistrationState {
	return flow.state
}

// Pending returns a copy of the held submission for form pre-fill, or nil
// before the first accepted submission.
func (flow *RegistrationFlow) Pending() *RegisterInput {
	if flow.pending == nil {
		return nil
	}
	pending := *flow.pending
	return &pending
}

/*
Submit validates and sends the collected fields.

Description: Valid in Collecting only. Validation failures are field-scoped
and never reach the network. On acceptance the submission is retained for
the verification step and the flow advances to AwaitingOTP.

Returns:
  - *RegisterReceipt: Acknowledgement with the OTP target phone number
  - error: VALIDATION_ERROR, the remote reason, or a state misuse error
*/
func (flow *RegistrationFlow) Submit(ctx context.Context, input RegisterInput) (*RegisterReceipt, error) {
	if flow.state != StateCollecting {
		return nil, apperr.Internal(fmt.Errorf("session: submit is invalid in state %q", flow.state))
	}

	receipt, err := flow.client.Register(ctx, input)
	if err != nil {
		// Stay in Collecting; the entered fields remain the caller's draft.
		return nil, err
	}

	flow.pending = &input
	flow.state = StateAwaitingOTP
	return receipt, nil
}

/*
Verify completes the registration with the delivered code.

Description: Valid in AwaitingOTP only. The code is normalized (non-digits
stripped) and must be exactly 6 digits before any network call. The original
submission is resubmitted alongside the code, as the service re-validates
identity and password at verification time. Success advances to Verified and
discards the pending submission; the caller must then be routed to login.

Returns:
  - error: VALIDATION_ERROR, the remote reason, or a state misuse error
*/
func (flow *RegistrationFlow) Verify(ctx context.Context, code string) error {
	if flow.state != StateAwaitingOTP {
		return apperr.Internal(fmt.Errorf("session: verify is invalid in state %q", flow.state))
	}

	if err := flow.client.VerifyRegistration(ctx, *flow.pending, code); err != nil {
		// Stay in AwaitingOTP; the caller may re-enter the code.
		return err
	}

	flow.state = StateVerified
	flow.pending = nil
	return nil
}

// Back steps from AwaitingOTP to Collecting without any network call.
//
// The pending submission is kept so the form re-renders with the previously
// entered fields; only the OTP draft is abandoned.
func (flow *RegistrationFlow) Back() {
	if flow.state == StateAwaitingOTP {
		flow.state = StateCollecting
	}
}
