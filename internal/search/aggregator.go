// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/torrent"
)

// collect drains the results channel into resolution buckets. A link is
// accepted only while its bucket holds fewer than maxResults/3 entries, so
// one resolution cannot crowd out the rest. Collection stops when the total
// cap is reached, the channel closes, the request is cancelled, or no link
// has arrived for the idle timeout.
func (s *Service) collect(ctx context.Context, results <-chan resolved) []resolved {
	bucketCap := s.maxResults / 3
	buckets := make(map[string]int)
	var accepted []resolved

	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	for len(accepted) < s.maxResults {
		select {
		case r, ok := <-results:
			if !ok {
				return accepted
			}
			res := r.Torrent.Resolution
			if buckets[res] >= bucketCap {
				continue
			}
			buckets[res]++
			accepted = append(accepted, r)

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.idleTimeout)
		case <-idle.C:
			s.log.Debug().Int("collected", len(accepted)).Msg("idle timeout, stopping collection")
			return accepted
		case <-ctx.Done():
			return accepted
		}
	}
	return accepted
}

// buildStreams orders the accepted links best quality first and formats
// them for display.
func (s *Service) buildStreams(resolver debrid.Resolver, category torrent.Category, links []resolved) []Stream {
	sort.SliceStable(links, func(i, j int) bool {
		return torrent.QualityRank(links[i].Torrent.Resolution) > torrent.QualityRank(links[j].Torrent.Resolution)
	})

	streams := make([]Stream, 0, len(links))
	for _, r := range links {
		streams = append(streams, formatStream(resolver, category, r))
	}
	return streams
}

// formatStream renders one link. The title is the release name, a season
// and episode tag for series, then two rows of resolution, audio, codec and
// size tags. The name identifies the provider and the brand.
func formatStream(resolver debrid.Resolver, category torrent.Category, r resolved) Stream {
	t := r.Torrent

	nameParts := []string{t.Title}
	if category == torrent.CategorySeries {
		if len(t.Seasons) > 0 && len(t.Episodes) > 0 {
			nameParts = append(nameParts, fmt.Sprintf("S%dE%02d", t.Seasons[0], t.Episodes[0]))
		}
		if t.EpisodeName != "" {
			nameParts = append(nameParts, t.EpisodeName)
		}
	}

	var tags []string
	if t.Resolution != "" {
		tags = append(tags, "\U0001F4FA"+t.Resolution)
	}
	if t.AudioChannels != "" {
		tags = append(tags, "\U0001F50A"+t.AudioChannels)
	}
	if t.Codec != "" {
		tags = append(tags, t.Codec)
	}
	size := r.Link.SizeBytes
	if size <= 0 {
		size = t.SizeBytes
	}
	if size > 0 {
		tags = append(tags, "\U0001F4BE"+humanize.Bytes(uint64(size)))
	}

	name := fmt.Sprintf("[%s+] Olorin", resolver.ShortName())
	if t.Resolution != "" {
		name += " " + t.Resolution
	}
	if t.AudioChannels != "" {
		name += " " + t.AudioChannels
	}

	title := strings.TrimSpace(strings.Join(nameParts, " "))
	if len(tags) > 0 {
		title += "\n" + arrangeIntoRows(tags, 2)
	}

	return Stream{
		URL:   strings.TrimSpace(r.Link.URL),
		Title: title,
		Name:  name,
	}
}

// arrangeIntoRows splits the tags across the given number of display rows,
// front-loading the first row when they divide unevenly.
func arrangeIntoRows(parts []string, rows int) string {
	split := (len(parts) + 1) / rows
	if split > len(parts) {
		split = len(parts)
	}
	return strings.TrimSpace(strings.Join(parts[:split], " ") + "\n" + strings.Join(parts[split:], " "))
}
