// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
	"github.com/lumina-labs/lumina-go/internal/platform/validate"
	"github.com/lumina-labs/lumina-go/internal/transport"
	"github.com/lumina-labs/lumina-go/pkg/normalize"
)

// # Contracts & Constructors

// Client implements the remote protocol operations of the identity service.
//
// Every operation validates its input locally before touching the network;
// validation failures are field-scoped and never produce a request.
type Client struct {
	transport *transport.Client
	store     credstore.Store
	log       *slog.Logger
}

// NewClient constructs the protocol [Client] and installs it as the
// transport's renewal implementation, closing the refresh loop.
func NewClient(tp *transport.Client, store credstore.Store, log *slog.Logger) *Client {
	client := &Client{transport: tp, store: store, log: log}
	tp.SetRenewer(client)
	return client
}

// # Registration

/*
Register submits a new enrollment and triggers OTP delivery.

POST /auth/register

Description: Normalizes and validates the collected fields, then asks the
service to start a pending registration. The service responds by sending a
6-digit code to the submitted phone number.

Parameters:
  - ctx: context.Context
  - input: RegisterInput (names, email, phone, password)

Returns:
  - *RegisterReceipt: Acknowledgement with the target phone number
  - error: VALIDATION_ERROR (local) or the remote rejection reason
*/
func (client *Client) Register(ctx context.Context, input RegisterInput) (*RegisterReceipt, error) {

	// Canonicalize names before validating so a whitespace-only name fails Required.
	input.FirstName = normalize.Name(input.FirstName)
	input.LastName = normalize.Name(input.LastName)

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		Required(FieldLastName, input.LastName).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPhoneNumber, input.PhoneNumber).
		Phone(FieldPhoneNumber, input.PhoneNumber).
		Required(FieldPassword, input.Password).
		Password(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"email":        input.Email,
		"password":     input.Password,
		"phone_number": input.PhoneNumber,
		"first_name":   input.FirstName,
		"last_name":    input.LastName,
	}

	receipt := &RegisterReceipt{}
	if err := client.transport.PostJSON(ctx, "/auth/register", payload, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

/*
VerifyRegistration completes a pending registration with the delivered OTP.

POST /auth/verify-registration

Description: The service re-validates identity and password at verification
time, so the original submission is sent again alongside the code. The
response carries a token pair, but verification is deliberately treated as
non-authenticating: the caller is routed to login, and the tokens are
discarded unread.

Parameters:
  - ctx: context.Context
  - input: RegisterInput (the original submission, resubmitted)
  - code: Raw user-entered OTP; non-digits are stripped before validation

Returns:
  - error: VALIDATION_ERROR (local) or the remote rejection reason
*/
func (client *Client) VerifyRegistration(ctx context.Context, input RegisterInput, code string) error {

	code = validate.NormalizeOTP(code)

	validator := &validate.Validator{}
	validator.OTP(FieldOTPCode, code)

	if err := validator.Err(); err != nil {
		return err
	}

	payload := map[string]string{
		"phone_number": input.PhoneNumber,
		"otp_code":     code,
		"email":        input.Email,
		"password":     input.Password,
		"first_name":   input.FirstName,
		"last_name":    input.LastName,
	}

	return client.transport.PostJSON(ctx, "/auth/verify-registration", payload, nil)
}

// # Authentication

/*
Login authenticates with email and password and establishes the session.

POST /auth/login

Description: On success the token pair and the returned profile are stored
together — the client never holds a valid token with no profile.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *Profile: The authenticated user
  - error: VALIDATION_ERROR (local) or the remote rejection reason
*/
func (client *Client) Login(ctx context.Context, email, password string) (*Profile, error) {

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Required(FieldPassword, password)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	var response authResponse
	if err := client.transport.PostJSON(ctx, "/auth/login", payload, &response); err != nil {
		return nil, err
	}

	if err := client.storeSession(ctx, &response); err != nil {
		return nil, err
	}
	return &response.User, nil
}

/*
Logout revokes the session on the service.

POST /auth/logout

Description: Remote revocation only. The caller (the session manager) owns
local teardown and performs it unconditionally, whether or not this call
succeeds.
*/
func (client *Client) Logout(ctx context.Context) error {
	return client.transport.PostJSON(ctx, "/auth/logout", nil, nil)
}

/*
CurrentUser fetches the profile of the authenticated user.

GET /auth/me

Description: Also refreshes the cached profile document so a restart can
render the dashboard before the first round trip completes.

Returns:
  - *Profile: Current profile (complete per [Profile.Complete])
  - error: UNAUTHORIZED, SESSION_EXPIRED, or a network failure
*/
func (client *Client) CurrentUser(ctx context.Context) (*Profile, error) {
	profile := &Profile{}
	if err := client.transport.GetJSON(ctx, "/auth/me", profile); err != nil {
		return nil, err
	}

	client.cacheProfile(ctx, profile)
	return profile, nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

POST /auth/forgot-password

Description: Validates the phone number locally, then asks the service to
deliver a reset OTP.

Returns:
  - string: Server acknowledgement message
  - error: VALIDATION_ERROR (local) or the remote rejection reason
*/
func (client *Client) RequestPasswordReset(ctx context.Context, phoneNumber string) (string, error) {

	validator := &validate.Validator{}
	validator.Required(FieldPhoneNumber, phoneNumber).
		Phone(FieldPhoneNumber, phoneNumber)

	if err := validator.Err(); err != nil {
		return "", err
	}

	payload := map[string]string{"phone_number": phoneNumber}

	var response messageResponse
	if err := client.transport.PostJSON(ctx, "/auth/forgot-password", payload, &response); err != nil {
		return "", err
	}
	return response.Message, nil
}

/*
ConfirmPasswordReset completes the forgot-password flow.

POST /auth/reset-password

Description: The new password must satisfy the strong rule (length ≥ 8 with
lowercase, uppercase, and digit); the OTP is normalized before validation.
Both constraints are enforced locally, per field, before the network call.

Returns:
  - string: Server acknowledgement message
  - error: VALIDATION_ERROR (local) or the remote rejection reason
*/
func (client *Client) ConfirmPasswordReset(ctx context.Context, phoneNumber, code, newPassword string) (string, error) {

	code = validate.NormalizeOTP(code)

	validator := &validate.Validator{}
	validator.Phone(FieldPhoneNumber, phoneNumber).
		OTP(FieldOTPCode, code).
		Required(FieldNewPassword, newPassword).
		StrongPassword(FieldNewPassword, newPassword)

	if err := validator.Err(); err != nil {
		return "", err
	}

	payload := map[string]string{
		"phone_number": phoneNumber,
		"otp_code":     code,
		"new_password": newPassword,
	}

	var response messageResponse
	if err := client.transport.PostJSON(ctx, "/auth/reset-password", payload, &response); err != nil {
		return "", err
	}
	return response.Message, nil
}

// # Token Renewal

/*
Renew exchanges the current token pair for a fresh one. It implements
[transport.Renewer].

POST /auth/refresh

Description: The request bypasses the stage pipeline — a renewal must not
recurse into the renewal stage — and authenticates itself with the access
token it is about to replace, matching the service contract. On success the
fresh pair and the returned profile are persisted together.

Returns:
  - *credstore.Credentials: The fresh pair (already persisted)
  - error: UNAUTHORIZED when the refresh token is no longer honored
*/
func (client *Client) Renew(ctx context.Context) (*credstore.Credentials, error) {

	current, ok := client.store.Get(ctx)
	if !ok {
		return nil, apperr.Unauthorized("No cached credentials to renew")
	}

	request, err := client.transport.NewRequest(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", transport.BearerHeader(current))

	httpResponse, err := client.transport.DoBare(request)
	if err != nil {
		return nil, apperr.Network(err)
	}
	defer func() { _ = httpResponse.Body.Close() }()

	var response authResponse
	if err := transport.DecodeResponse(httpResponse, &response); err != nil {
		return nil, err
	}

	creds := credstore.Credentials{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		TokenType:    response.TokenType,
	}
	if err := client.store.Set(ctx, creds); err != nil {
		return nil, err
	}
	client.cacheProfile(ctx, &response.User)

	return &creds, nil
}

// # Internals

// storeSession persists a token-issuing response: credentials and profile
// together, never one without the other.
func (client *Client) storeSession(ctx context.Context, response *authResponse) error {
	creds := credstore.Credentials{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		TokenType:    response.TokenType,
	}
	if err := client.store.Set(ctx, creds); err != nil {
		return apperr.Internal(err)
	}

	client.cacheProfile(ctx, &response.User)
	return nil
}

// cacheProfile best-effort updates the profile cache. A failed cache write is
// logged, not surfaced: the authoritative profile lives in memory.
func (client *Client) cacheProfile(ctx context.Context, profile *Profile) {
	document, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := client.store.SetProfile(ctx, document); err != nil {
		client.log.Warn("session: failed to cache profile", slog.Any("error", err))
	}
}
