// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
	"github.com/lumina-labs/lumina-go/internal/platform/ctxutil"
)

// Renewer obtains a fresh token pair from the identity service.
//
// It is implemented by the session protocol layer and injected after
// construction (the protocol client itself needs the transport to exist
// first). The renewal stage never inspects how the renewal happens.
type Renewer interface {
	// Renew exchanges the current credentials for a fresh pair.
	Renew(ctx context.Context) (*credstore.Credentials, error)
}

// renewal is the state behind the expiry-recovery response stage.
type renewal struct {
	store     credstore.Store
	log       *slog.Logger
	group     singleflight.Group
	mu        sync.RWMutex
	renewer   Renewer
	onExpired func()
}

// setRenewer installs the renewal implementation. Until one is installed the
// stage passes 401 responses through untouched.
func (r *renewal) setRenewer(renewer Renewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renewer = renewer
}

// setExpiredHook installs the callback fired after an unrecoverable renewal
// failure, once the store has been cleared.
func (r *renewal) setExpiredHook(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpired = hook
}

func (r *renewal) current() (Renewer, func()) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renewer, r.onExpired
}

/*
stage returns the expiry-recovery response stage.

Description: Watches every response for an authorization failure. On the
first 401 of a request it renews the token pair (coalescing concurrent
renewals into one flight) and transparently replays the original request;
the caller only ever observes the final outcome. On renewal failure it
tears the session down and propagates the renewal error, not the 401.

Ordering guarantee: a replayed request carries the retried marker in its
context, so a second 401 passes through untouched — at most one renewal
attempt per original request.
*/
func (r *renewal) stage(next Doer) Doer {
	return DoerFunc(func(request *http.Request) (*http.Response, error) {

		// 1. Forward the request unchanged
		response, err := next.Do(request)
		if err != nil || response.StatusCode != http.StatusUnauthorized {
			return response, err
		}

		// 2. One renewal per original request. A marked context means this
		// response already rode on a freshly renewed token.
		if ctxutil.Retried(request.Context()) {
			return response, nil
		}

		renewer, onExpired := r.current()
		if renewer == nil {
			return response, nil
		}

		// 3. A 401 with no cached credentials is a plain pre-auth rejection
		// (wrong password on login), not an expired session.
		stale, ok := r.store.Get(request.Context())
		if !ok {
			return response, nil
		}

		// The 401 body is discarded: the caller must never observe the
		// intermediate failure. Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()

		// 4. Coalesce concurrent renewals keyed on the failing access token:
		// N parallel 401s produce exactly one refresh call.
		renewed, renewErr, _ := r.group.Do(stale.AccessToken, func() (interface{}, error) {

			// Another flight may have replaced the pair while we queued.
			if current, ok := r.store.Get(request.Context()); ok && current.AccessToken != stale.AccessToken {
				return current, nil
			}

			// Renew persists the fresh pair itself (whole-record,
			// last-write-wins); this closure only shares the result.
			creds, err := renewer.Renew(request.Context())
			if err != nil {
				return nil, err
			}
			return creds, nil
		})

		// 5. Unrecoverable: clear credentials AND profile together, notify
		// the session layer, and surface the renewal failure.
		if renewErr != nil {
			ctxutil.GetLogger(request.Context()).Warn("transport: token renewal failed",
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.Any("error", renewErr),
			)

			_ = r.store.Clear(request.Context())
			if onExpired != nil {
				onExpired()
			}
			return nil, apperr.SessionExpired(renewErr)
		}

		// 6. Replay the original request once with the fresh token.
		replay, err := rewind(request, renewed.(*credstore.Credentials))
		if err != nil {
			return nil, apperr.Internal(err)
		}

		ctxutil.GetLogger(request.Context()).Debug("transport: replaying request after renewal",
			slog.String("path", request.URL.Path),
		)

		return next.Do(replay)
	})
}

// rewind clones the original request with a rewound body, the retried marker,
// and the renewed bearer token.
//
// The token is set here as well as by the [Bearer] stage: this stage may sit
// outside Bearer in a custom chain, and the replay must never go out with the
// stale header it was cloned from.
func rewind(request *http.Request, creds *credstore.Credentials) (*http.Request, error) {
	replay := request.Clone(ctxutil.WithRetried(request.Context()))

	if request.GetBody != nil {
		body, err := request.GetBody()
		if err != nil {
			return nil, err
		}
		replay.Body = body
	}

	replay.Header.Set("Authorization", BearerHeader(creds))
	return replay, nil
}
