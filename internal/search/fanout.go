// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/aulendur/olorin/internal/indexer"
	"github.com/aulendur/olorin/internal/torrent"
)

// fanout runs every applicable indexer concurrently and multiplexes their
// candidates onto the shared channel. Sources are isolated from each other:
// one failing or slow source never stops the rest. Cancellation is observed
// at the channel send, which also tells the source to stop producing.
func (s *Service) fanout(ctx context.Context, criteria torrent.SearchCriteria, out chan<- torrent.Torrent) {
	g, ctx := errgroup.WithContext(ctx)

	for _, ix := range indexer.ForCategory(s.indexers, criteria.Category) {
		g.Go(func() error {
			err := ix.Search(ctx, criteria, func(t torrent.Torrent) bool {
				select {
				case out <- t:
					return true
				case <-ctx.Done():
					return false
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Str("indexer", ix.ID()).Msg("indexer search failed")
			}
			return nil
		})
	}

	_ = g.Wait()
}
