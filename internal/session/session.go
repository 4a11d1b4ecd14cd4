// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package session implements the authentication session lifecycle of the Lumina
client.

It covers the full protocol surface of the identity service — registration
with OTP verification, login, password reset, token refresh — together with
the two multi-step flow state machines and the process-wide session manager.

Architecture:

  - Client: The protocol operations, one method per remote endpoint, with
    all local validation applied before any network call.
  - RegistrationFlow / ResetFlow: Explicit state machines for the two
    partially-completed, resumable flows.
  - Manager: Process-wide session state (current user, loading flag) with a
    documented initialize/teardown lifecycle, passed by reference to the
    parts of the application that need it.

The package ensures a failed step never advances a flow and that credentials
and the cached profile are always set and cleared together.
*/
package session

import (
	"time"
)

// # Domain Entities

// Profile represents the authenticated user as reported by the service.
//
// # Partial Population
//
// Different endpoints populate different subsets of the record. Optional
// fields are pointers: nil means "unknown", never "empty" — rendering code
// must not coerce an absent CreatedAt into the zero time.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	Role        *string    `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Complete reports whether the populating endpoint supplied the full record.
func (profile *Profile) Complete() bool {
	return profile.FirstName != nil &&
		profile.LastName != nil &&
		profile.PhoneNumber != nil &&
		profile.Role != nil &&
		profile.IsActive != nil &&
		profile.CreatedAt != nil
}

// DisplayName returns a presentable name, falling back to the email address
// when the name fields are unknown.
func (profile *Profile) DisplayName() string {
	switch {
	case profile.FirstName != nil && profile.LastName != nil:
		return *profile.FirstName + " " + *profile.LastName
	case profile.FirstName != nil:
		return *profile.FirstName
	default:
		return profile.Email
	}
}

// # Protocol Payloads

// RegisterInput holds the data collected before enrollment. It lives only in
// the registration flow's working memory until OTP verification completes or
// the flow is abandoned — it is never written to the credential store.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

// RegisterReceipt is the acknowledgement of a registration submission.
type RegisterReceipt struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phone_number"`
	TempID      string `json:"temp_id"`
}

// authResponse is the token-issuing success body shared by login, refresh,
// and verify-registration.
type authResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	User         Profile `json:"user"`
}

// messageResponse is the plain acknowledgement body of the reset endpoints.
type messageResponse struct {
	Message string `json:"message"`
}

// # Field Identifiers

// Global field names for validation in the session domain.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldPhoneNumber = "phone_number"
	FieldPassword    = "password"
	FieldOTPCode     = "otp_code"
	FieldNewPassword = "new_password"
)
