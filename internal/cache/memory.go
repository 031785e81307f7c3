// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used in tests and redis-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	sets    map[string]map[string]struct{}
	scored  map[string]*scoredSet
	nowFunc func() time.Time
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time
}

type scoredSet struct {
	members   map[string]float64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryValue),
		sets:    make(map[string]map[string]struct{}),
		scored:  make(map[string]*scoredSet),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) now() time.Time {
	return s.nowFunc()
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(now, at time.Time) bool {
	return !at.IsZero() && now.After(at)
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok || expired(s.now(), v.expiresAt) {
		delete(s.values, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	s.values[key] = memoryValue{data: data, expiresAt: expiry(s.now(), ttl)}
	return nil
}

func (s *MemoryStore) AddUnique(_ context.Context, set, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sets[set]
	if !ok {
		members = make(map[string]struct{})
		s.sets[set] = members
	}
	if _, exists := members[member]; exists {
		return false, nil
	}
	members[member] = struct{}{}
	return true, nil
}

func (s *MemoryStore) ScoredUpsert(_ context.Context, key, member string, score float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.scored[key]
	if !ok || expired(s.now(), set.expiresAt) {
		set = &scoredSet{members: make(map[string]float64)}
		s.scored[key] = set
	}
	set.members[member] = score
	set.expiresAt = expiry(s.now(), ttl)
	return nil
}

func (s *MemoryStore) ScoredRead(_ context.Context, key string) ([]ScoredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.scored[key]
	if !ok || expired(s.now(), set.expiresAt) {
		delete(s.scored, key)
		return nil, nil
	}

	entries := make([]ScoredEntry, 0, len(set.members))
	for member, score := range set.members {
		entries = append(entries, ScoredEntry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	return entries, nil
}

func (s *MemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for key, v := range s.values {
		if strings.HasPrefix(key, prefix) && !expired(now, v.expiresAt) {
			keys = append(keys, key)
		}
	}
	for key, set := range s.scored {
		if strings.HasPrefix(key, prefix) && !expired(now, set.expiresAt) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if ok && !expired(s.now(), v.expiresAt) {
		return false, nil
	}
	s.values[key] = memoryValue{data: []byte("1"), expiresAt: expiry(s.now(), ttl)}
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
