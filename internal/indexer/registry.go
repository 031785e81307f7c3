// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/domain"
	"github.com/aulendur/olorin/internal/feed"
	"github.com/aulendur/olorin/internal/metrics"
)

// BuildRegistry assembles the closed set of indexers the configuration
// enables. The cached set is always first so repeat titles answer without a
// network round trip.
func BuildRegistry(cfg *domain.Config, store cache.Store, publisher feed.Publisher, m *metrics.Manager) []Indexer {
	indexers := []Indexer{NewCached(store, 0)}

	if cfg.TorznabURL != "" {
		for _, tracker := range cfg.TorznabIndexers {
			indexers = append(indexers, NewTorznab(TorznabOptions{
				BaseURL: cfg.TorznabURL,
				APIKey:  cfg.TorznabAPIKey,
				Tracker: tracker,
				Timeout: time.Duration(cfg.TorznabTimeout) * time.Second,
			}, store, publisher, m))
		}
	}

	if cfg.EztvURL != "" {
		indexers = append(indexers, NewEZTV(cfg.EztvURL, 0, publisher, m))
	}

	log.Info().Int("count", len(indexers)).Msg("indexers configured")
	return indexers
}
