// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"sync"

	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/torrent"
)

// resolved pairs a candidate with the link a provider produced for it. The
// candidate carries the parsed release metadata used for bucketing and
// display.
type resolved struct {
	Torrent torrent.Torrent
	Link    debrid.StreamLink
}

// resolveAll drains the candidate channel with a fixed pool of workers and
// forwards every resolved link. A resolution failure degrades to "no link"
// for that candidate only. Workers exit when the candidates are exhausted
// or the request is cancelled; the send onto the bounded results channel is
// the backpressure path onto the candidate producers.
func (s *Service) resolveAll(ctx context.Context, resolver debrid.Resolver, criteria torrent.SearchCriteria, candidates <-chan torrent.Torrent, out chan<- resolved) {
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case t, ok := <-candidates:
					if !ok {
						return
					}
					link, err := resolver.Resolve(ctx, t.InfoHash, criteria.Season, criteria.Episode)
					if err != nil {
						s.log.Debug().Err(err).Str("info_hash", t.InfoHash).Msg("resolve failed")
						continue
					}
					if link == nil {
						continue
					}
					select {
					case out <- resolved{Torrent: t, Link: *link}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
}
