// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package transport is the single configured HTTP client shared by every remote
operation of the Lumina client.

It owns base-endpoint resolution, JSON content negotiation, and the two
cross-cutting behaviors of the session lifecycle:

  - Outbound: bearer token attachment read from the credential store.
  - Inbound: transparent expiry recovery — renew once, replay once.

Architecture:

  - Doer/Stage: An explicit decorator pipeline around the raw [http.Client],
    so each behavior is an ordinary value testable without network I/O.
  - Error mapping: Remote rejections, authorization failures, and network
    faults are converted to [apperr.AppError] values at this boundary; no
    caller ever inspects raw HTTP status codes.

Anything that is not an authorization failure is propagated unmodified —
the transport retries nothing on its own beyond the single renewal replay.
*/
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
)

// DefaultTimeout bounds a single HTTP exchange when the caller does not
// configure one.
const DefaultTimeout = 30 * time.Second

// # Client Definition

// Options configures a [Client].
type Options struct {
	// BaseURL is the identity/resource service endpoint (no trailing slash).
	BaseURL string

	// Store is the credential store consulted by the bearer and renewal stages.
	Store credstore.Store

	// Logger receives transport-level diagnostics.
	Logger *slog.Logger

	// Timeout bounds each exchange. Zero means [DefaultTimeout].
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests). When set, Timeout
	// is ignored.
	HTTPClient *http.Client
}

// Client is the configured HTTP client with its stage pipeline.
//
// It is constructed once in main and shared by the session protocol and the
// resource callers. All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	store    credstore.Store
	log      *slog.Logger
	raw      *http.Client
	pipeline Doer
	renewal  *renewal
}

// New constructs a [Client] with the standard stage chain:
// request correlation, then expiry recovery, then bearer attachment.
//
// The renewal stage stays dormant until [Client.SetRenewer] installs the
// protocol-level refresh operation.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	raw := opts.HTTPClient
	if raw == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		raw = &http.Client{Timeout: timeout}
	}

	client := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		store:   opts.Store,
		log:     logger,
		raw:     raw,
		renewal: &renewal{store: opts.Store, log: logger},
	}

	// Renewal sits outside Bearer so a replay re-enters bearer attachment
	// and picks up the freshly stored token.
	client.pipeline = Chain(raw,
		RequestID(),
		client.renewal.stage,
		Bearer(opts.Store),
	)

	return client
}

// SetRenewer installs the refresh operation used by the expiry-recovery stage.
func (client *Client) SetRenewer(renewer Renewer) {
	client.renewal.setRenewer(renewer)
}

// SetSessionExpiredHook installs the callback invoked after an unrecoverable
// renewal failure. The credential store is already cleared when it fires; the
// hook's job is to route the application back to its unauthenticated entry
// point.
func (client *Client) SetSessionExpiredHook(hook func()) {
	client.renewal.setExpiredHook(hook)
}

// BaseURL returns the configured service endpoint.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// # JSON Helpers

/*
GetJSON issues an authenticated GET and decodes the success body into out.

Parameters:
  - ctx: context.Context
  - path: Service path, e.g. "/auth/me"
  - out: Pointer to the destination struct, or nil to discard the body

Returns:
  - error: [apperr.AppError] describing the failure class
*/
func (client *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	request, err := client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return client.exchange(request, out)
}

/*
PostJSON issues an authenticated POST with a JSON body and decodes the
success body into out.

Parameters:
  - ctx: context.Context
  - path: Service path, e.g. "/auth/login"
  - body: Request payload, or nil for an empty body
  - out: Pointer to the destination struct, or nil to discard the body

Returns:
  - error: [apperr.AppError] describing the failure class
*/
func (client *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	request, err := client.NewRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return client.exchange(request, out)
}

// NewRequest builds a JSON request against the configured base URL.
//
// Bodies are buffered so [http.Request.GetBody] can rewind them for the
// renewal replay.
func (client *Client) NewRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("transport: failed to encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, reader)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("transport: failed to build request: %w", err))
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	return request, nil
}

// Do sends a request through the full stage pipeline.
func (client *Client) Do(request *http.Request) (*http.Response, error) {
	return client.pipeline.Do(request)
}

// DoBare sends a request on the raw client, bypassing every stage.
//
// The refresh operation uses it: a renewal request must not recurse into the
// renewal stage, and it authenticates itself explicitly with the token pair
// it is about to replace.
func (client *Client) DoBare(request *http.Request) (*http.Response, error) {
	return client.raw.Do(request)
}

// exchange runs the request through the pipeline and maps the outcome.
func (client *Client) exchange(request *http.Request, out interface{}) error {
	response, err := client.Do(request)
	if err != nil {
		// Renewal failures arrive pre-wrapped; everything else at this point
		// is a connectivity fault.
		if apperr.IsAppError(err) {
			return err
		}
		return apperr.Network(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	return DecodeResponse(response, out)
}

// # Response Decoding

// remotePayload is the error envelope the identity service emits.
type remotePayload struct {
	Detail string `json:"detail"`
}

// DecodeResponse maps an HTTP response to either a decoded success body or
// an [apperr.AppError].
//
// # Error Mapping
//
//   - 401: [apperr.Unauthorized] with the server-supplied detail.
//   - Other non-2xx: [apperr.RemoteRejected] with the detail, or a generic
//     fallback when the payload carries none.
func DecodeResponse(response *http.Response, out interface{}) error {
	if response.StatusCode >= http.StatusBadRequest {
		var payload remotePayload
		_ = json.NewDecoder(response.Body).Decode(&payload)

		if response.StatusCode == http.StatusUnauthorized {
			detail := payload.Detail
			if detail == "" {
				detail = "Authentication required"
			}
			return apperr.Unauthorized(detail)
		}
		return apperr.RemoteRejected(response.StatusCode, payload.Detail)
	}

	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return apperr.Internal(fmt.Errorf("transport: failed to decode response body: %w", err))
	}
	return nil
}
