// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session

import (
	"context"
	"fmt"

	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
)

// # Password Reset States

// ResetState identifies the current step of a [ResetFlow].
type ResetState int

const (
	// StateRequestingCode is the initial step: the caller enters the phone
	// number that should receive the reset code.
	StateRequestingCode ResetState = iota

	// StateAwaitingReset means the code was delivered and the caller is
	// entering it together with the new password.
	StateAwaitingReset

	// StateDone is terminal: the password was changed — route to login.
	StateDone
)

// String implements [fmt.Stringer] for logs and error messages.
func (state ResetState) String() string {
	switch state {
	case StateRequestingCode:
		return "requesting_code"
	case StateAwaitingReset:
		return "awaiting_reset"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ResetFlow is the two-step forgot-password → reset state machine.
//
// The only datum carried between steps is the phone number; the code and new
// password are drafts owned by the caller until Confirm accepts them.
//
// # Concurrency
//
// A flow belongs to a single form/interaction; it is not safe for concurrent
// use.
type ResetFlow struct {
	client      *Client
	state       ResetState
	phoneNumber string
}

// NewResetFlow starts a flow in the RequestingCode state.
func NewResetFlow(client *Client) *ResetFlow {
	return &ResetFlow{client: client, state: StateRequestingCode}
}

// State returns the current step.
func (flow *ResetFlow) State() ResetState {
	return flow.state
}

// PhoneNumber returns the phone number held between steps.
func (flow *ResetFlow) PhoneNumber() string {
	return flow.phoneNumber
}

/*
Request asks the service to deliver a reset code.

Description: Valid in RequestingCode only. The phone number is validated
locally against the fixed pattern before any network call. On acceptance the
number is retained for the confirm step and the flow advances to
AwaitingReset.

Returns:
  - string: Server acknowledgement message
  - error: VALIDATION_ERROR, the remote reason, or a state misuse error
*/
func (flow *ResetFlow) Request(ctx context.Context, phoneNumber string) (string, error) {
	if flow.state != StateRequestingCode {
		return "", apperr.Internal(fmt.Errorf("session: request is invalid in state %q", flow.state))
	}

	message, err := flow.client.RequestPasswordReset(ctx, phoneNumber)
	if err != nil {
		// Stay in RequestingCode.
		return "", err
	}

	flow.phoneNumber = phoneNumber
	flow.state = StateAwaitingReset
	return message, nil
}

/*
Confirm submits the delivered code and the new password.

Description: Valid in AwaitingReset only. The code is normalized and checked
for exactly 6 digits; the new password must satisfy the strong rule. Both
are enforced locally, per field, before the network call. Success advances
to Done; the caller must then be routed to login.

Returns:
  - string: Server acknowledgement message
  - error: VALIDATION_ERROR, the remote reason, or a state misuse error
*/
func (flow *ResetFlow) Confirm(ctx context.Context, code, newPassword string) (string, error) {
	if flow.state != StateAwaitingReset {
		return "", apperr.Internal(fmt.Errorf("session: confirm is invalid in state %q", flow.state))
	}

	message, err := flow.client.ConfirmPasswordReset(ctx, flow.phoneNumber, code, newPassword)
	if err != nil {
		// Stay in AwaitingReset; the caller may retry.
		return "", err
	}

	flow.state = StateDone
	return message, nil
}

// Back steps from AwaitingReset to RequestingCode without any network call,
// abandoning the code and password drafts.
func (flow *ResetFlow) Back() {
	if flow.state == StateAwaitingReset {
		flow.state = StateRequestingCode
	}
}
