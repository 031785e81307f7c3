// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debrid resolves torrent candidates into playable links through
// debrid providers.
package debrid

import (
	"context"
	"fmt"
)

// StreamLink is a resolved, playable (or deferred) link. Immutable once
// created; cached with a provider-specific TTL.
type StreamLink struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size"`
}

// Resolver turns an info hash into a StreamLink. A nil link with a nil
// error means the provider has no playable copy; resolution failures never
// abort a search, they just produce fewer results.
type Resolver interface {
	Name() string
	ShortName() string
	ProviderID() string

	// SharesCache reports whether resolved links are valid across users.
	// Providers that bind links to an account key the link cache per token.
	SharesCache() bool

	Resolve(ctx context.Context, infoHash string, season, episode int) (*StreamLink, error)
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// DeferredResolver is implemented by providers whose search-time links are
// internal references that must be exchanged for a playable URL on first
// use.
type DeferredResolver interface {
	Resolver
	ResolveDeferred(ctx context.Context, infoHash string, fileID int) (*StreamLink, error)
}
