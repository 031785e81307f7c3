// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer defines the torrent candidate sources the search pipeline
// fans out across.
package indexer

import (
	"context"

	"github.com/aulendur/olorin/internal/torrent"
)

// Torznab category ids.
const (
	CategoryIDMovies = 2000
	CategoryIDTV     = 5000
)

// CategoryID maps a media category onto its torznab id.
func CategoryID(c torrent.Category) int {
	if c == torrent.CategorySeries {
		return CategoryIDTV
	}
	return CategoryIDMovies
}

// EmitFunc receives one candidate. Returning false tells the indexer the
// caller has stopped consuming; the indexer must return promptly.
type EmitFunc func(torrent.Torrent) bool

// Indexer produces a lazy, finite candidate sequence per Search call. Every
// call restarts the sequence; implementations hold no per-search state.
type Indexer interface {
	ID() string
	Name() string
	SupportsCategory(category torrent.Category) bool
	SupportsIMDB() bool
	Search(ctx context.Context, criteria torrent.SearchCriteria, emit EmitFunc) error
}

// ForCategory filters the given indexers down to those serving a category.
func ForCategory(indexers []Indexer, category torrent.Category) []Indexer {
	var out []Indexer
	for _, ix := range indexers {
		if ix.SupportsCategory(category) {
			out = append(out, ix)
		}
	}
	return out
}
