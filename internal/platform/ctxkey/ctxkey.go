// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

// Package ctxkey defines typed context keys used by the transport and the
// development server.
//
// # Safety
//
// It is used to store and retrieve per-request values (request ID, logger,
// renewal marker). Using a private, unexported type for keys prevents
// collisions with third-party packages that might also use context for storage.
package ctxkey

// key is an unexported type used for context keys to ensure type safety.
//
// # Collision Prevention
//
// Even if another package uses "request_id" as a string key, it will not
// collide with this key type because Go's [context.Context] uses both the
// value AND the type for lookups.
type key string

const (
	// KeyRequestID is the context key for the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyLogger is the context key for the per-request [*log/slog.Logger].
	KeyLogger key = "logger"

	// KeyRetried is the context key for the renewal marker. A request whose
	// context carries it has already consumed its single renewal attempt.
	KeyRetried key = "retried"
)
