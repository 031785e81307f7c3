// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/torrent"
)

// Cached serves candidates the ingestion consumer ranked on earlier
// searches. It is the fastest source and usually the only one that answers
// within the aggregation window on repeat titles.
type Cached struct {
	store cache.Store
	limit int
	log   zerolog.Logger
}

func NewCached(store cache.Store, limit int) *Cached {
	if limit <= 0 {
		limit = torznabDefaultMaxResults
	}
	return &Cached{
		store: store,
		limit: limit,
		log:   log.Logger.With().Str("module", "indexer").Str("tracker", "cache").Logger(),
	}
}

func (c *Cached) ID() string   { return "cache" }
func (c *Cached) Name() string { return "Cached" }

func (c *Cached) SupportsCategory(torrent.Category) bool { return true }
func (c *Cached) SupportsIMDB() bool                     { return true }

func (c *Cached) Search(ctx context.Context, criteria torrent.SearchCriteria, emit EmitFunc) error {
	hashes, err := c.rankedHashes(ctx, criteria)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(hashes))
	count := 0
	for _, hash := range hashes {
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		record, err := cache.GetTyped[torrent.ScoredTorrentRecord](ctx, c.store, cache.TorrentMetaKey(hash))
		if err != nil || record == nil {
			continue
		}

		parsed := torrent.ParseTitle(record.Title)
		parsed.InfoHash = hash
		parsed.ImdbID = record.ImdbID

		if !emit(parsed) {
			return nil
		}
		count++
		if count >= c.limit || ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// rankedHashes collects members best score first. An episode request also
// pulls the season-pack set, since whole-season packs are ranked without an
// episode component. A season request without an episode merges every
// episode set under that season.
func (c *Cached) rankedHashes(ctx context.Context, criteria torrent.SearchCriteria) ([]string, error) {
	keys := []string{cache.TorrentsKey(criteria.ImdbID, criteria.Season, criteria.Episode)}
	switch {
	case criteria.Season > 0 && criteria.Episode > 0:
		keys = append(keys, cache.TorrentsKey(criteria.ImdbID, criteria.Season, 0))
	case criteria.Season > 0:
		more, err := c.store.ListKeys(ctx, cache.TorrentsKey(criteria.ImdbID, criteria.Season, 0)+":")
		if err != nil {
			c.log.Warn().Err(err).Msg("listing episode sets failed")
		} else {
			keys = append(keys, more...)
		}
	}

	var hashes []string
	for _, key := range keys {
		entries, err := c.store.ScoredRead(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			hashes = append(hashes, entry.Member)
		}
	}
	return hashes, nil
}
