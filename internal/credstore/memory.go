// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package credstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process [Store] used by tests and by ephemeral
// sessions that should leave nothing behind on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	creds   *Credentials
	profile json.RawMessage
}

// NewMemoryStore creates an empty in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the cached credentials, or false when none are stored.
func (store *MemoryStore) Get(ctx context.Context) (*Credentials, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.creds == nil {
		return nil, false
	}

	// Copy so callers cannot mutate the stored record in place.
	creds := *store.creds
	return &creds, true
}

// Set replaces the stored credentials atomically.
func (store *MemoryStore) Set(ctx context.Context, creds Credentials) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.creds = &creds
	return nil
}

// Clear removes the credentials and the cached profile together.
func (store *MemoryStore) Clear(ctx context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.creds = nil
	store.profile = nil
	return nil
}

// GetProfile returns the cached profile document, or false when absent.
func (store *MemoryStore) GetProfile(ctx context.Context) (json.RawMessage, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if len(store.profile) == 0 {
		return nil, false
	}
	return store.profile, true
}

// SetProfile replaces the cached profile document.
func (store *MemoryStore) SetProfile(ctx context.Context, profile json.RawMessage) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.profile = profile
	return nil
}
