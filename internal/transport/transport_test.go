// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/platform/apperr"
	"github.com/lumina-labs/lumina-go/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// renewerFunc adapts a function to the [transport.Renewer] interface.
type renewerFunc func(ctx context.Context) (*credstore.Credentials, error)

func (f renewerFunc) Renew(ctx context.Context) (*credstore.Credentials, error) {
	return f(ctx)
}

func newClient(t *testing.T, serverURL string, store credstore.Store) *transport.Client {
	t.Helper()
	return transport.New(transport.Options{
		BaseURL: serverURL,
		Store:   store,
		Logger:  testLogger(),
	})
}

func seed(t *testing.T, store credstore.Store, access string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), credstore.Credentials{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    credstore.TokenTypeBearer,
	}))
}

/*
TestClient_BearerAttachment verifies that the access token from the store is
attached to every request, and that requests go out unauthenticated when the
store is empty.
*/
func TestClient_BearerAttachment(t *testing.T) {
	var gotAuth atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	client := newClient(t, server.URL, store)

	// 1. Empty store: no Authorization header
	require.NoError(t, client.GetJSON(context.Background(), "/auth/me", nil))
	assert.Equal(t, "", gotAuth.Load())

	// 2. Stored credentials: attached with the token type
	seed(t, store, "token-abc")
	require.NoError(t, client.GetJSON(context.Background(), "/auth/me", nil))
	assert.Equal(t, "Bearer token-abc", gotAuth.Load())
}

/*
TestClient_RequestID verifies the correlation header on outbound requests.
*/
func TestClient_RequestID(t *testing.T) {
	var gotID atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID.Store(r.Header.Get(transport.HeaderXRequestID))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, credstore.NewMemoryStore())
	require.NoError(t, client.GetJSON(context.Background(), "/", nil))

	assert.NotEmpty(t, gotID.Load())
}

/*
TestClient_ErrorMapping verifies the remote status to AppError mapping.
*/
func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{"conflict_with_detail", http.StatusConflict, `{"detail":"Email is already registered"}`,
			apperr.CodeRemoteRejected, "Email is already registered"},
		{"server_error_no_detail", http.StatusInternalServerError, `{}`,
			apperr.CodeRemoteRejected, "Request rejected by the service"},
		{"malformed_error_body", http.StatusBadRequest, `not json`,
			apperr.CodeRemoteRejected, "Request rejected by the service"},
		{"unauthorized_with_detail", http.StatusUnauthorized, `{"detail":"Invalid email or password"}`,
			apperr.CodeUnauthorized, "Invalid email or password"},
		{"unauthorized_no_detail", http.StatusUnauthorized, `{}`,
			apperr.CodeUnauthorized, "Authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			// No renewer installed, so 401s pass straight to mapping.
			client := newClient(t, server.URL, credstore.NewMemoryStore())
			err := client.PostJSON(context.Background(), "/auth/login", map[string]string{}, nil)

			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.wantCode, ae.Code)
			assert.Equal(t, tt.wantMessage, ae.Message)
			assert.Equal(t, tt.status, ae.HTTPStatus)
		})
	}
}

/*
TestClient_NetworkError verifies that connectivity faults map to
NETWORK_ERROR rather than leaking url.Error values.
*/
func TestClient_NetworkError(t *testing.T) {
	// A closed server guarantees connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newClient(t, server.URL, credstore.NewMemoryStore())
	err := client.GetJSON(context.Background(), "/auth/me", nil)

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNetwork))
}

/*
TestRenewal_ReplayAfter401 verifies the core recovery path: a 401 triggers
one renewal and one transparent replay, and the caller observes only the
final success.
*/
func TestRenewal_ReplayAfter401(t *testing.T) {
	var requests, refreshes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
			return
		}

		// Replays must carry the original body.
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "stale")

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		creds := credstore.Credentials{
			AccessToken:  "fresh",
			RefreshToken: "refresh-fresh",
			TokenType:    credstore.TokenTypeBearer,
		}
		if err := store.Set(ctx, creds); err != nil {
			return nil, err
		}
		return &creds, nil
	}))

	var out struct {
		Echo map[string]string `json:"echo"`
	}
	err := client.PostJSON(context.Background(), "/search", map[string]string{"query": "go"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "go", out.Echo["query"])
	assert.Equal(t, int32(1), refreshes.Load(), "exactly one renewal")
	assert.Equal(t, int32(2), requests.Load(), "original plus one replay")

	// The fresh pair is what survives in the store.
	creds, ok := store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "fresh", creds.AccessToken)
}

/*
TestRenewal_SingleReplayOnly verifies that a 401 on the replayed request
passes through without a second renewal attempt.
*/
func TestRenewal_SingleReplayOnly(t *testing.T) {
	var requests, refreshes atomic.Int32

	// The service rejects everything, including the replay.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Still not valid"}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "stale")

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		creds := credstore.Credentials{AccessToken: "fresh", RefreshToken: "r", TokenType: credstore.TokenTypeBearer}
		if err := store.Set(ctx, creds); err != nil {
			return nil, err
		}
		return &creds, nil
	}))

	err := client.GetJSON(context.Background(), "/auth/me", nil)

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
	assert.Equal(t, int32(1), refreshes.Load(), "no second renewal for the replayed 401")
	assert.Equal(t, int32(2), requests.Load())
}

/*
TestRenewal_FailureTearsDownSession verifies the unrecoverable path: the
store is cleared, the expiry hook fires, and the caller receives
SESSION_EXPIRED instead of the raw 401.
*/
func TestRenewal_FailureTearsDownSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "stale")
	require.NoError(t, store.SetProfile(context.Background(), json.RawMessage(`{"id":"u1"}`)))

	var hookFired atomic.Bool

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		return nil, apperr.Unauthorized("Session is no longer valid")
	}))
	client.SetSessionExpiredHook(func() { hookFired.Store(true) })

	err := client.GetJSON(context.Background(), "/auth/me", nil)

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeSessionExpired))

	_, ok := store.Get(context.Background())
	assert.False(t, ok, "credentials cleared")
	_, ok = store.GetProfile(context.Background())
	assert.False(t, ok, "profile cleared together with credentials")
	assert.True(t, hookFired.Load(), "expiry hook notified")
}

/*
TestRenewal_PreAuthRejectionPassesThrough verifies that a 401 with no cached
credentials (wrong password on login) is surfaced as-is, with no renewal and
no teardown.
*/
func TestRenewal_PreAuthRejectionPassesThrough(t *testing.T) {
	var refreshes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid email or password"}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore() // empty: pre-auth
	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		return nil, errors.New("must not be called")
	}))

	err := client.PostJSON(context.Background(), "/auth/login", map[string]string{}, nil)

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)
	assert.Equal(t, "Invalid email or password", ae.Message)
	assert.Equal(t, int32(0), refreshes.Load())
}

/*
TestRenewal_NonAuthFailuresPassThrough verifies that no renewal happens for
failures other than 401.
*/
func TestRenewal_NonAuthFailuresPassThrough(t *testing.T) {
	var refreshes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "valid")

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		return nil, errors.New("must not be called")
	}))

	err := client.GetJSON(context.Background(), "/auth/me", nil)

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRemoteRejected))
	assert.Equal(t, int32(0), refreshes.Load())
}

/*
TestRenewal_CoalescesConcurrentRenewals verifies that N parallel requests
failing on the same stale token produce exactly one renewal flight, and all
N callers succeed on the replay.
*/
func TestRenewal_CoalescesConcurrentRenewals(t *testing.T) {
	const parallel = 8

	var refreshes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "stale")

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		creds := credstore.Credentials{
			AccessToken:  "fresh",
			RefreshToken: "refresh-fresh",
			TokenType:    credstore.TokenTypeBearer,
		}
		if err := store.Set(ctx, creds); err != nil {
			return nil, err
		}
		return &creds, nil
	}))

	var wg sync.WaitGroup
	errs := make([]error, parallel)
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.GetJSON(context.Background(), "/auth/me", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), refreshes.Load(), "concurrent 401s coalesce into one renewal")
}

/*
TestClient_DoBare verifies that the bare path bypasses every stage: no
bearer attachment, no renewal.
*/
func TestClient_DoBare(t *testing.T) {
	var gotAuth atomic.Value
	var refreshes atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	seed(t, store, "stale")

	client := newClient(t, server.URL, store)
	client.SetRenewer(renewerFunc(func(ctx context.Context) (*credstore.Credentials, error) {
		refreshes.Add(1)
		return nil, errors.New("must not be called")
	}))

	request, err := client.NewRequest(context.Background(), http.MethodPost, "/auth/refresh", nil)
	require.NoError(t, err)

	response, err := client.DoBare(request)
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Equal(t, "", gotAuth.Load(), "bare requests carry no implicit bearer")
	assert.Equal(t, int32(0), refreshes.Load(), "bare requests never trigger renewal")
}
