// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

package credstore

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout. Simple string keys, mirroring the browser client's
// string-keyed localStorage entries.
const (
	redisKeyCredentials = "lumina:credentials"
	redisKeyProfile     = "lumina:profile"
)

// Opiniated default timeouts for Redis operations.
const (
	redisDialTimeout  = 3 * time.Second
	redisReadTimeout  = 2 * time.Second
	redisWriteTimeout = 2 * time.Second
	redisPingTimeout  = 2 * time.Second
)

// RedisStore persists credentials in Redis.
//
// It exists for shared development environments where several headless
// clients (CI jobs, scripted agents) reuse one session instead of each
// logging in separately.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore parses a Redis URL and returns a ready-to-use [Store].
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - log: Structured logger for connection events.
func NewRedisStore(context stdctx.Context, redisURL string, log *slog.Logger) (*RedisStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("credstore: invalid redis URL: %w", err)
	}

	options.DialTimeout = redisDialTimeout
	options.ReadTimeout = redisReadTimeout
	options.WriteTimeout = redisWriteTimeout

	client := redis.NewClient(options)

	// Validate connectivity immediately at startup.
	pingCtx, cancel := stdctx.WithTimeout(context, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credstore: redis ping failed: %w", err)
	}

	log.Info("credstore: redis backend connected", slog.String("addr", options.Addr))

	return &RedisStore{client: client, log: log}, nil
}

// Get returns the cached credentials, or false when none are stored.
//
// Connectivity failures are reported as absence — the contract says Get never
// errors, and an unreachable cache degrades to "not logged in" rather than
// blocking the caller.
func (store *RedisStore) Get(context stdctx.Context) (*Credentials, bool) {
	data, err := store.client.Get(context, redisKeyCredentials).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			store.log.Warn("credstore: redis get failed", slog.Any("error", err))
		}
		return nil, false
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, false
	}
	return &creds, true
}

// Set replaces the stored credentials atomically.
//
// The whole record is marshaled and written with one SET, so concurrent
// writers are last-write-wins on the full token pair — never a field merge.
func (store *RedisStore) Set(context stdctx.Context, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("credstore: failed to encode credentials: %w", err)
	}

	if err := store.client.Set(context, redisKeyCredentials, data, 0).Err(); err != nil {
		return fmt.Errorf("credstore: redis set failed: %w", err)
	}
	return nil
}

// Clear removes the credentials and the cached profile together.
//
// A single DEL covers both keys so no reader can observe a cleared token
// pair next to a surviving profile.
func (store *RedisStore) Clear(context stdctx.Context) error {
	if err := store.client.Del(context, redisKeyCredentials, redisKeyProfile).Err(); err != nil {
		return fmt.Errorf("credstore: redis clear failed: %w", err)
	}
	return nil
}

// GetProfile returns the cached profile document, or false when absent.
func (store *RedisStore) GetProfile(context stdctx.Context) (json.RawMessage, bool) {
	data, err := store.client.Get(context, redisKeyProfile).Bytes()
	if err != nil {
		return nil, false
	}
	return json.RawMessage(data), true
}

// SetProfile replaces the cached profile document.
func (store *RedisStore) SetProfile(context stdctx.Context, profile json.RawMessage) error {
	if err := store.client.Set(context, redisKeyProfile, []byte(profile), 0).Err(); err != nil {
		return fmt.Errorf("credstore: redis profile set failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (store *RedisStore) Close() error {
	return store.client.Close()
}
