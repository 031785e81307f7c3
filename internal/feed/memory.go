// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package feed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process Publisher/Subscriber used in tests and for
// serve-mode runs where the searcher and the consumer share a process.
type MemoryFeed struct {
	mu          sync.Mutex
	subscribers []chan SearchResultEvent
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

func (f *MemoryFeed) Publish(ctx context.Context, event SearchResultEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subscribers {
		// non-blocking: a stalled in-process subscriber drops events rather
		// than stalling the searcher
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, _ string) (<-chan SearchResultEvent, error) {
	ch := make(chan SearchResultEvent, 16)

	f.mu.Lock()
	f.subscribers = append(f.subscribers, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		for i, sub := range f.subscribers {
			if sub == ch {
				f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
				break
			}
		}
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}
