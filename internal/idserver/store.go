// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package idserver

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// # In-Memory State

// Pending OTPs are short-lived by design: a development round trip either
// completes within minutes or starts over.
const otpTTL = 10 * time.Minute

// account is a registered, verified user.
type account struct {
	ID           string
	Email        string
	PasswordHash string
	PhoneNumber  string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// pendingRegistration holds a submission between register and verify.
type pendingRegistration struct {
	TempID       string
	Email        string
	PasswordHash string
	PhoneNumber  string
	FirstName    string
	LastName     string
	OTP          string
	ExpiresAt    time.Time
}

// otpEntry is a delivered password-reset code.
type otpEntry struct {
	OTP       string
	ExpiresAt time.Time
}

// memoryStore keeps all identity state in process memory so the development
// server runs with zero infrastructure. Everything is lost on restart —
// exactly what a disposable dev environment wants.
type memoryStore struct {
	mu sync.Mutex

	accountsByEmail map[string]*account
	accountsByID    map[string]*account
	accountsByPhone map[string]*account

	pendingByPhone map[string]*pendingRegistration
	resetByPhone   map[string]otpEntry

	// activeRefresh maps userID → the one live refresh token. Rotation
	// replaces it; logout deletes it.
	activeRefresh  map[string]string
	refreshToUser  map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accountsByEmail: make(map[string]*account),
		accountsByID:    make(map[string]*account),
		accountsByPhone: make(map[string]*account),
		pendingByPhone:  make(map[string]*pendingRegistration),
		resetByPhone:    make(map[string]otpEntry),
		activeRefresh:   make(map[string]string),
		refreshToUser:   make(map[string]string),
	}
}

// # Registration

func (store *memoryStore) createPending(pending *pendingRegistration) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.pendingByPhone[pending.PhoneNumber] = pending
}

func (store *memoryStore) findPending(phoneNumber string) (*pendingRegistration, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	pending, ok := store.pendingByPhone[phoneNumber]
	if !ok || time.Now().After(pending.ExpiresAt) {
		return nil, false
	}
	return pending, true
}

// promotePending converts a verified pending registration into an account
// and removes the pending entry in the same critical section.
func (store *memoryStore) promotePending(pending *pendingRegistration) *account {
	store.mu.Lock()
	defer store.mu.Unlock()

	user := &account{
		ID:           uuid.NewString(),
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		PhoneNumber:  pending.PhoneNumber,
		FirstName:    pending.FirstName,
		LastName:     pending.LastName,
		Role:         "user",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	store.accountsByEmail[user.Email] = user
	store.accountsByID[user.ID] = user
	store.accountsByPhone[user.PhoneNumber] = user
	delete(store.pendingByPhone, pending.PhoneNumber)

	return user
}

// # Lookups

func (store *memoryStore) findByEmail(email string) (*account, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.accountsByEmail[email]
	return user, ok
}

func (store *memoryStore) findByID(id string) (*account, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.accountsByID[id]
	return user, ok
}

func (store *memoryStore) findByPhone(phoneNumber string) (*account, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.accountsByPhone[phoneNumber]
	return user, ok
}

func (store *memoryStore) emailTaken(email string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	_, registered := store.accountsByEmail[email]
	return registered
}

// # Password Reset

func (store *memoryStore) setResetOTP(phoneNumber, otp string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.resetByPhone[phoneNumber] = otpEntry{OTP: otp, ExpiresAt: time.Now().Add(otpTTL)}
}

// consumeResetOTP validates and deletes a reset code in one step so a code
// can never be replayed.
func (store *memoryStore) consumeResetOTP(phoneNumber, otp string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.resetByPhone[phoneNumber]
	if !ok || time.Now().After(entry.ExpiresAt) || entry.OTP != otp {
		return false
	}
	delete(store.resetByPhone, phoneNumber)
	return true
}

func (store *memoryStore) updatePassword(userID, passwordHash string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.accountsByID[userID]; ok {
		user.PasswordHash = passwordHash
	}
}

// # Sessions

// rotateRefresh replaces the user's live refresh token and returns the new one.
func (store *memoryStore) rotateRefresh(userID string) string {
	store.mu.Lock()
	defer store.mu.Unlock()

	if old, ok := store.activeRefresh[userID]; ok {
		delete(store.refreshToUser, old)
	}

	token := uuid.NewString()
	store.activeRefresh[userID] = token
	store.refreshToUser[token] = userID
	return token
}

// hasSession reports whether the user still holds a live refresh token.
func (store *memoryStore) hasSession(userID string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	_, ok := store.activeRefresh[userID]
	return ok
}

// revokeSession deletes the user's live refresh token. Idempotent.
func (store *memoryStore) revokeSession(userID string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if token, ok := store.activeRefresh[userID]; ok {
		delete(store.refreshToUser, token)
		delete(store.activeRefresh, userID)
	}
}

// # OTP Generation

// newOTP draws a uniform 6-digit code from crypto/rand.
func newOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand failing is unrecoverable in practice; a constant code
		// in a dev-only server is an acceptable degradation.
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}
