// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package transport

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/platform/ctxutil"
)

// # Pipeline Primitives

// Doer executes a single HTTP exchange. Both the real [http.Client] and every
// decorating stage satisfy it, so the chain can be cut anywhere in tests.
type Doer interface {
	Do(request *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the [Doer] interface.
type DoerFunc func(request *http.Request) (*http.Response, error)

// Do implements [Doer].
func (f DoerFunc) Do(request *http.Request) (*http.Response, error) {
	return f(request)
}

// Stage decorates a [Doer] with one cross-cutting behavior.
//
// # Ordering
//
// Stages see requests outermost-first and responses innermost-first, exactly
// like server middleware reversed onto the client side.
type Stage func(next Doer) Doer

// Chain wraps base with the given stages. stages[0] becomes the outermost
// decorator: the first to see the request, the last to see the response.
func Chain(base Doer, stages ...Stage) Doer {
	wrapped := base
	for i := len(stages) - 1; i >= 0; i-- {
		wrapped = stages[i](wrapped)
	}
	return wrapped
}

// # Request Stages

// HeaderXRequestID is the correlation header attached to every request.
const HeaderXRequestID = "X-Request-ID"

// RequestID attaches a correlation ID to every outbound request.
func RequestID() Stage {
	return func(next Doer) Doer {
		return DoerFunc(func(request *http.Request) (*http.Response, error) {

			// 1. Respect an ID the caller already attached (replays keep theirs)
			requestID := request.Header.Get(HeaderXRequestID)

			// 2. Generate a new one if missing (UUID v7 for time-sortable properties)
			if requestID == "" {
				uuidV7, err := uuid.NewV7()
				if err != nil {
					requestID = uuid.New().String()
				} else {
					requestID = uuidV7.String()
				}
			}

			// 3. Attach to the header and the context for log correlation
			request.Header.Set(HeaderXRequestID, requestID)
			ctx := ctxutil.WithRequestID(request.Context(), requestID)

			return next.Do(request.WithContext(ctx))
		})
	}
}

// Bearer reads the credential store before every request and attaches the
// access token as an Authorization header.
//
// # Pre-Auth Endpoints
//
// When the store is empty the stage is a no-op, so login and registration
// requests go out unauthenticated instead of failing locally.
func Bearer(store credstore.Store) Stage {
	return func(next Doer) Doer {
		return DoerFunc(func(request *http.Request) (*http.Response, error) {
			if creds, ok := store.Get(request.Context()); ok {
				request.Header.Set("Authorization", BearerHeader(creds))
			}
			return next.Do(request)
		})
	}
}

// BearerHeader formats the Authorization header value for a token pair.
// Older caches may predate the token_type field; default to Bearer.
func BearerHeader(creds *credstore.Credentials) string {
	tokenType := creds.TokenType
	if tokenType == "" {
		tokenType = credstore.TokenTypeBearer
	}
	return tokenType + " " + creds.AccessToken
}
