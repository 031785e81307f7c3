// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache defines the typed cache and lock store the rest of the
// system coordinates through, with Redis and in-memory backends.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// ScoredEntry is one member of a ranked set, best score first on read.
type ScoredEntry struct {
	Member string
	Score  float64
}

// Store is the contract every backend satisfies. All values are opaque
// bytes; use GetTyped/SetTyped for JSON-typed access.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// AddUnique adds a member to a set and reports whether it was newly added.
	AddUnique(ctx context.Context, set, member string) (bool, error)

	// ScoredUpsert inserts or replaces a member of a ranked set and refreshes
	// the set's TTL.
	ScoredUpsert(ctx context.Context, key, member string, score float64, ttl time.Duration) error

	// ScoredRead returns the ranked set ordered best score first.
	ScoredRead(ctx context.Context, key string) ([]ScoredEntry, error)

	// ListKeys returns all keys starting with the given prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Lock acquires an advisory lock that expires after ttl. It reports true
	// only for the first acquirer within the window.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// GetTyped fetches a JSON value. It returns (nil, nil) on a miss so callers
// can treat absence as a plain cache miss rather than an error.
func GetTyped[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrapf(err, "unmarshal cached value for %s", key)
	}
	return &v, nil
}

// SetTyped stores a JSON value with an expiry.
func SetTyped[T any](ctx context.Context, s Store, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal value for %s", key)
	}
	return s.Set(ctx, key, raw, ttl)
}
