// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// fileState is the on-disk document. Both halves live in one file so that
// [FileStore.Clear] removes them in a single atomic replace.
type fileState struct {
	Credentials *Credentials    `json:"credentials,omitempty"`
	Profile     json.RawMessage `json:"profile,omitempty"`
}

// FileStore persists credentials to a JSON file in the user's config
// directory. It outlives the process but is intentionally not synchronized
// across concurrent processes — each holds an eventually-consistent view,
// matching browser tabs sharing localStorage.
type FileStore struct {
	path string
	log  *slog.Logger

	mu sync.Mutex
}

// NewFileStore creates a file-backed [Store] at the given path.
//
// The parent directory is created eagerly so the first Set cannot fail on a
// missing directory mid-login.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credstore: failed to create credentials dir: %w", err)
	}
	return &FileStore{path: path, log: log}, nil
}

// Get returns the cached credentials, or false when none are stored.
//
// Read failures (missing file, corrupt JSON) are treated as absence: the
// contract says Get never errors, and a corrupt cache is indistinguishable
// from a logged-out client.
func (store *FileStore) Get(ctx context.Context) (*Credentials, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	state, err := store.load()
	if err != nil || state.Credentials == nil {
		return nil, false
	}
	return state.Credentials, true
}

// Set replaces the stored credentials atomically.
func (store *FileStore) Set(ctx context.Context, creds Credentials) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	// Keep the cached profile; only the token pair is replaced.
	state, _ := store.load()
	state.Credentials = &creds

	return store.save(state)
}

// Clear removes the credentials and the cached profile together.
func (store *FileStore) Clear(ctx context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := os.Remove(store.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credstore: failed to clear credentials file: %w", err)
	}
	return nil
}

// GetProfile returns the cached profile document, or false when absent.
func (store *FileStore) GetProfile(ctx context.Context) (json.RawMessage, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	state, err := store.load()
	if err != nil || len(state.Profile) == 0 {
		return nil, false
	}
	return state.Profile, true
}

// SetProfile replaces the cached profile document.
func (store *FileStore) SetProfile(ctx context.Context, profile json.RawMessage) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	state, _ := store.load()
	state.Profile = profile

	return store.save(state)
}

// load reads and decodes the state file. Caller holds the mutex.
func (store *FileStore) load() (fileState, error) {
	var state fileState

	data, err := os.ReadFile(store.path)
	if err != nil {
		return state, err
	}

	if err := json.Unmarshal(data, &state); err != nil {
		store.log.Warn("credstore: discarding corrupt credentials file",
			slog.String("path", store.path))
		return fileState{}, err
	}
	return state, nil
}

// save writes the state via temp file + rename so a crash mid-write can never
// leave a half-written credentials file. Caller holds the mutex.
func (store *FileStore) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: failed to encode credentials: %w", err)
	}

	tmp := store.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credstore: failed to write credentials file: %w", err)
	}

	if err := os.Rename(tmp, store.path); err != nil {
		return fmt.Errorf("credstore: failed to replace credentials file: %w", err)
	}
	return nil
}
