// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrozenStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.nowFunc = func() time.Time { return now }
	return store, &now
}

func TestMemoryStoreGetSetExpiry(t *testing.T) {
	ctx := context.Background()
	store, now := newFrozenStore(t)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	*now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreLock(t *testing.T) {
	ctx := context.Background()
	store, now := newFrozenStore(t)

	acquired, err := store.Lock(ctx, "lock:x", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)

	again, err := store.Lock(ctx, "lock:x", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	*now = now.Add(2 * time.Hour)
	after, err := store.Lock(ctx, "lock:x", time.Hour)
	require.NoError(t, err)
	assert.True(t, after)
}

func TestMemoryStoreAddUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	added, err := store.AddUnique(ctx, "seen", "a")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddUnique(ctx, "seen", "a")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = store.AddUnique(ctx, "seen", "b")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestMemoryStoreScoredSet(t *testing.T) {
	ctx := context.Background()
	store, now := newFrozenStore(t)

	require.NoError(t, store.ScoredUpsert(ctx, "ranked", "low", 1, time.Hour))
	require.NoError(t, store.ScoredUpsert(ctx, "ranked", "high", 10, time.Hour))
	require.NoError(t, store.ScoredUpsert(ctx, "ranked", "mid", 5, time.Hour))

	// upsert replaces, not appends
	require.NoError(t, store.ScoredUpsert(ctx, "ranked", "low", 2, time.Hour))

	entries, err := store.ScoredRead(ctx, "ranked")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "high", entries[0].Member)
	assert.Equal(t, "mid", entries[1].Member)
	assert.Equal(t, "low", entries[2].Member)
	assert.Equal(t, float64(2), entries[2].Score)

	*now = now.Add(2 * time.Hour)
	entries, err = store.ScoredRead(ctx, "ranked")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStoreListKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "torrents:tt1:1:1", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, "torrents:tt1:2:1", []byte("b"), 0))
	require.NoError(t, store.Set(ctx, "other:tt1", []byte("c"), 0))
	require.NoError(t, store.ScoredUpsert(ctx, "torrents:tt1", "x", 1, time.Hour))

	keys, err := store.ListKeys(ctx, "torrents:tt1")
	require.NoError(t, err)
	assert.Equal(t, []string{"torrents:tt1", "torrents:tt1:1:1", "torrents:tt1:2:1"}, keys)
}

func TestTypedRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	ctx := context.Background()
	store := NewMemoryStore()

	miss, err := GetTyped[payload](ctx, store, "p")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, SetTyped(ctx, store, "p", payload{Name: "x", Count: 3}, time.Minute))

	hit, err := GetTyped[payload](ctx, store, "p")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "x", hit.Name)
	assert.Equal(t, 3, hit.Count)
}

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "cinemeta:tt0108778", MediaInfoKey("tt0108778"))
	assert.Equal(t, "premiumize:directdl:ABCDEF", DirectDLKey("abcdef"))
	assert.Equal(t, "rd:stream_links:ABCDEF:k1", StreamLinkKey("RD", "abcdef", "k1"))
	assert.Equal(t, "rd:instant_file_set:torrent:ABCDEF", InstantFileSetKey("abcdef"))
	assert.Equal(t, "rd:available:ABCDEF", AvailabilityKey("RD", "abcdef"))
	assert.Equal(t, "torrents:tt1", TorrentsKey("tt1", 0, 0))
	assert.Equal(t, "torrents:tt1:5", TorrentsKey("tt1", 5, 0))
	assert.Equal(t, "torrents:tt1:5:10", TorrentsKey("tt1", 5, 10))
	// episode without season never widens the key
	assert.Equal(t, "torrents:tt1", TorrentsKey("tt1", 0, 10))
}
