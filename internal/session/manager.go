// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumina-labs/lumina-go/internal/credstore"
	"github.com/lumina-labs/lumina-go/internal/transport"
)

// Manager owns the process-wide session state: the current user and the
// loading flag the rest of the application consults before rendering.
//
// # Lifecycle
//
// Construct once, call [Manager.Initialize] once at startup, and pass the
// manager by reference to whatever needs it. Teardown happens on explicit
// logout or on unrecoverable renewal failure; both converge on the identical
// cleared state (no credentials, no profile, unauthenticated).
//
// # Concurrency
//
// All methods are safe for concurrent use.
type Manager struct {
	client *Client
	store  credstore.Store
	log    *slog.Logger

	mu      sync.RWMutex
	user    *Profile
	loading bool

	onUnauthenticated func()
}

// NewManager constructs the session manager and registers its teardown
// handler with the transport, so an unrecoverable renewal failure anywhere
// in the process converges on the same cleared state as an explicit logout.
//
// The manager starts in the loading state; [Manager.Initialize] resolves it.
func NewManager(client *Client, tp *transport.Client, store credstore.Store, log *slog.Logger) *Manager {
	manager := &Manager{
		client:  client,
		store:   store,
		log:     log,
		loading: true,
	}
	tp.SetSessionExpiredHook(manager.handleSessionExpired)
	return manager
}

// SetUnauthenticatedHandler installs the navigation callback fired whenever
// the session is torn down from inside (renewal failure). The application
// shell uses it to route back to the unauthenticated entry point.
func (manager *Manager) SetUnauthenticatedHandler(handler func()) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.onUnauthenticated = handler
}

// # Lifecycle

/*
Initialize resolves the session from cached credentials at application start.

Description: Attempts to fetch the current profile with whatever credentials
survive from the previous run. Success populates the user; ANY failure —
including simply having no cached credentials — clears credentials and
profile together and lands in the unauthenticated state. Either way the
loading flag is lowered, so callers never render a flash of unauthenticated
content before the answer is known.

Returns:
  - error: The fetch failure, for callers that want to report it. The
    session state is already settled (unauthenticated) when non-nil.
*/
func (manager *Manager) Initialize(ctx context.Context) error {
	defer manager.setLoading(false)

	// A cold start with no cached credentials is the normal unauthenticated
	// path, not an error.
	if _, ok := manager.store.Get(ctx); !ok {
		manager.clearLocal()
		return nil
	}

	profile, err := manager.client.CurrentUser(ctx)
	if err != nil {
		manager.log.Warn("session: initialization fetch failed", slog.Any("error", err))

		// Converge on the cleared state: tokens and profile go together.
		_ = manager.store.Clear(ctx)
		manager.clearLocal()
		return err
	}

	manager.setUser(profile)
	return nil
}

/*
Login authenticates and populates the session.

Description: Delegates to the protocol operation, which stores credentials
and profile together on success. Failure leaves the session exactly as it
was: unauthenticated callers stay unauthenticated, and the reason is
surfaced to the caller.

Returns:
  - *Profile: The authenticated user
  - error: VALIDATION_ERROR or the remote rejection reason
*/
func (manager *Manager) Login(ctx context.Context, email, password string) (*Profile, error) {
	profile, err := manager.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	manager.setUser(profile)
	return profile, nil
}

/*
Logout tears the session down.

Description: The remote revocation is best-effort — its failure is logged
and does not block local teardown. Credentials and profile are then cleared
together unconditionally.

Returns:
  - error: Local store failures only; never the remote revocation error
*/
func (manager *Manager) Logout(ctx context.Context) error {
	if err := manager.client.Logout(ctx); err != nil {
		manager.log.Warn("session: remote logout failed, clearing locally anyway",
			slog.Any("error", err))
	}

	err := manager.store.Clear(ctx)
	manager.clearLocal()
	return err
}

// # Accessors

// User returns the current profile, or nil when unauthenticated.
func (manager *Manager) User() *Profile {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	if manager.user == nil {
		return nil
	}
	user := *manager.user
	return &user
}

// Authenticated reports whether a user is populated.
func (manager *Manager) Authenticated() bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.user != nil
}

// Loading reports whether [Manager.Initialize] has settled yet.
func (manager *Manager) Loading() bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.loading
}

// # Proactive Renewal

// EnsureFresh renews the token pair early when the access token is within
// [RenewalSkew] of expiry.
//
// Failures are deliberately swallowed: the reactive 401 path performs the
// authoritative renewal, and an early failure here must not block a request
// that might still succeed.
func (manager *Manager) EnsureFresh(ctx context.Context) {
	creds, ok := manager.store.Get(ctx)
	if !ok || !ExpiringSoon(creds.AccessToken, time.Now()) {
		return
	}

	if _, err := manager.client.Renew(ctx); err != nil {
		manager.log.Debug("session: proactive renewal failed", slog.Any("error", err))
	}
}

// # Internals

// handleSessionExpired is the transport's teardown hook. The credential
// store is already cleared when it fires; this side clears the in-memory
// user and notifies the navigation callback.
func (manager *Manager) handleSessionExpired() {
	manager.mu.Lock()
	manager.user = nil
	handler := manager.onUnauthenticated
	manager.mu.Unlock()

	manager.log.Info("session: expired, returning to unauthenticated state")
	if handler != nil {
		handler()
	}
}

func (manager *Manager) setUser(profile *Profile) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.user = profile
}

func (manager *Manager) clearLocal() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.user = nil
}

func (manager *Manager) setLoading(loading bool) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.loading = loading
}
