// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package feed carries raw indexer results from searchers to the ingestion
// consumer. Delivery is at-least-once; consumers dedup by GUID.
package feed

import (
	"context"

	"github.com/aulendur/olorin/internal/torrent"
)

// SearchResultTopic is the queue raw indexer results are published on.
const SearchResultTopic = "events:torrent_search_result"

// SearchResultEvent is one raw indexer hit plus the criteria that produced
// it. The info hash may be absent; the consumer derives it from the link.
type SearchResultEvent struct {
	Criteria   torrent.SearchCriteria `json:"search_criteria"`
	GUID       string                 `json:"guid"`
	Title      string                 `json:"title"`
	InfoHash   string                 `json:"info_hash,omitempty"`
	MagnetLink string                 `json:"magnet_link,omitempty"`
	ImdbID     string                 `json:"imdb_id,omitempty"`
	Tracker    string                 `json:"tracker,omitempty"`
	SizeBytes  int64                  `json:"size_bytes,omitempty"`
	Seeders    int                    `json:"seeders,omitempty"`
	Year       int                    `json:"year,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event SearchResultEvent) error
}

// Subscriber yields an effectively-infinite stream of events. The returned
// channel closes when the context is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan SearchResultEvent, error)
}
