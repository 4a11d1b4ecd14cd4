// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package credstore owns the client's persisted session state: the token pair
and the cached user profile.

It is the localStorage analogue of the browser client. Every other component
reads and writes credentials exclusively through the [Store] interface and
never holds a private copy.

Architecture:

  - Credentials: The token pair, always replaced as a whole record.
  - Store: get/set/clear contract shared by all backends.
  - Backends: file (default, survives restarts), memory (tests and
    ephemeral sessions), redis (shared development environments).

Invariant: credentials and the profile cache are cleared together. A store
must never end up holding one without the other being clearable in the same
teardown path.
*/
package credstore

import (
	"context"
	"encoding/json"
)

// TokenTypeBearer is the only token type the identity service issues.
const TokenTypeBearer = "Bearer"

// Credentials is the persisted token pair.
//
// # Atomicity
//
// Credentials are created on login/refresh and replaced as one record:
// no reader may ever observe a new access token paired with a stale refresh
// token. Backends implement [Store.Set] as whole-record last-write-wins.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Store is the contract every credential backend implements.
//
// # Concurrency
//
// Implementations are safe for concurrent use by multiple in-flight requests.
// Concurrent writers race benignly: the last whole-record write wins.
type Store interface {
	// Get returns the current credentials, or false when none are cached.
	// Absence is not an error.
	Get(ctx context.Context) (*Credentials, bool)

	// Set replaces the stored credentials atomically (whole record).
	Set(ctx context.Context, creds Credentials) error

	// Clear removes the credentials AND the cached profile together.
	Clear(ctx context.Context) error

	// GetProfile returns the cached profile document, or false when absent.
	GetProfile(ctx context.Context) (json.RawMessage, bool)

	// SetProfile replaces the cached profile document.
	SetProfile(ctx context.Context, profile json.RawMessage) error
}
