// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ingest consumes raw indexer results off the feed, deduplicates
// them, scores them against their search criteria and persists ranked
// candidate records for future searches.
package ingest

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/feed"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

const (
	defaultQueueDepth = 100
	defaultWorkers    = 1

	magnetResolveTimeout = 30 * time.Second
)

// Consumer subscribes to the search result feed and feeds a worker pool
// through a bounded queue. Delivery is at-least-once; an advisory expiring
// lock per GUID drops probable duplicates best-effort.
type Consumer struct {
	store      cache.Store
	feed       feed.Subscriber
	metrics    *metrics.Manager
	http       *http.Client
	workers    int
	queueDepth int
	log        zerolog.Logger
}

func NewConsumer(store cache.Store, sub feed.Subscriber, m *metrics.Manager, workers, queueDepth int) *Consumer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Consumer{
		store:   store,
		feed:    sub,
		metrics: m,
		http: &http.Client{
			Timeout: magnetResolveTimeout,
			// redirect targets are read from the Location header, never followed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		workers:    workers,
		queueDepth: queueDepth,
		log:        log.Logger.With().Str("module", "ingest").Logger(),
	}
}

// Run blocks until the context is cancelled and the workers have drained.
func (c *Consumer) Run(ctx context.Context) error {
	events, err := c.feed.Subscribe(ctx, feed.SearchResultTopic)
	if err != nil {
		return errors.Wrap(err, "subscribe to search results")
	}

	queue := make(chan feed.SearchResultEvent, c.queueDepth)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range queue {
				c.processEvent(ctx, event)
			}
		}()
	}

	for event := range events {
		locked, err := c.store.Lock(ctx, cache.IngestLockKey(event.GUID), cache.TTLIngestLock)
		if err != nil {
			c.log.Warn().Err(err).Str("guid", event.GUID).Msg("ingest lock failed")
			continue
		}
		if !locked {
			c.metrics.CountIngest("duplicate")
			continue
		}

		select {
		case queue <- event:
		case <-ctx.Done():
		}
	}

	close(queue)
	wg.Wait()
	return nil
}

func (c *Consumer) processEvent(ctx context.Context, event feed.SearchResultEvent) {
	criteria := event.Criteria

	if event.ImdbID != "" && criteria.ImdbID != "" && event.ImdbID != criteria.ImdbID {
		c.log.Debug().Str("wanted", criteria.ImdbID).Str("got", event.ImdbID).Msg("skipping mismatched imdb")
		c.metrics.CountIngest("imdb_mismatch")
		return
	}

	infoHash := c.resolveInfoHash(ctx, event)
	if infoHash == "" {
		c.log.Debug().Str("guid", event.GUID).Msg("no info hash found")
		c.metrics.CountIngest("unresolved")
		return
	}

	t := torrent.ParseTitle(event.Title)
	t.InfoHash = infoHash
	if event.SizeBytes > 0 {
		t.SizeBytes = event.SizeBytes
	}

	// without an IMDB correlation the parsed title has to match the query
	if event.ImdbID != criteria.ImdbID && !fuzzy.MatchNormalizedFold(criteria.Query, t.Title) {
		c.log.Debug().Str("wanted", criteria.Query).Str("got", t.Title).Msg("skipping mismatched title")
		c.metrics.CountIngest("title_mismatch")
		return
	}

	if criteria.Category == torrent.CategoryMovie {
		c.processMovie(ctx, t, criteria)
	} else {
		c.processShow(ctx, t, criteria)
	}
}

func (c *Consumer) processMovie(ctx context.Context, t torrent.Torrent, criteria torrent.SearchCriteria) {
	score := t.MatchScore(t.Title, criteria.Year, 0, 0)
	if score <= 0 {
		c.metrics.CountIngest("discarded")
		return
	}
	c.upsert(ctx, t, criteria.ImdbID, score, 0, 0)
}

// processShow persists one record per season for a whole-season pack, and
// one per (season, episode) pair otherwise. Episode records with a
// non-positive score are discarded; a season pack always lands so a single
// cached pack can answer many future episode requests.
func (c *Consumer) processShow(ctx context.Context, t torrent.Torrent, criteria torrent.SearchCriteria) {
	switch {
	case len(t.Episodes) == 0:
		for _, season := range t.Seasons {
			score := t.MatchScore(t.Title, criteria.Year, season, 0)
			c.upsert(ctx, t, criteria.ImdbID, score, season, 0)
		}
	case len(t.Seasons) > 0:
		for _, season := range t.Seasons {
			for _, episode := range t.Episodes {
				score := t.MatchScore(t.Title, criteria.Year, season, episode)
				if score <= 0 {
					c.metrics.CountIngest("discarded")
					continue
				}
				c.upsert(ctx, t, criteria.ImdbID, score, season, episode)
			}
		}
	}
}

func (c *Consumer) upsert(ctx context.Context, t torrent.Torrent, imdbID string, score, season, episode int) {
	key := cache.TorrentsKey(imdbID, season, episode)
	if err := c.store.ScoredUpsert(ctx, key, t.InfoHash, float64(score), cache.TTLScoredTorrent); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("scored upsert failed")
		return
	}

	record := torrent.ScoredTorrentRecord{
		InfoHash: t.InfoHash,
		Title:    t.RawTitle,
		ImdbID:   imdbID,
		Score:    score,
		Season:   season,
		Episode:  episode,
	}
	if err := cache.SetTyped(ctx, c.store, cache.TorrentMetaKey(t.InfoHash), record, cache.TTLScoredTorrent); err != nil {
		c.log.Warn().Err(err).Str("info_hash", t.InfoHash).Msg("torrent meta write failed")
		return
	}
	c.metrics.CountIngest("upserted")
}

// resolveInfoHash derives the canonical hash for an event: directly when
// carried, from a magnet URI, or by issuing a single non-following request
// to a redirect-style link and parsing the Location header of a 302.
// Successful redirect resolutions are cached by GUID for eight weeks.
// Timeouts and cancellations resolve to "unresolved", not an error.
func (c *Consumer) resolveInfoHash(ctx context.Context, event feed.SearchResultEvent) string {
	if hash, ok := torrent.NormalizeInfoHash(event.InfoHash); ok {
		return hash
	}

	link := event.MagnetLink
	if strings.HasPrefix(link, "magnet") {
		hash, err := torrent.ParseMagnet(link)
		if err != nil {
			c.log.Debug().Err(err).Str("guid", event.GUID).Msg("bad magnet link")
			return ""
		}
		return hash
	}
	if !strings.HasPrefix(link, "http") {
		return ""
	}

	cacheKey := cache.MagnetResolveKey(event.GUID)
	if raw, err := c.store.Get(ctx, cacheKey); err == nil && len(raw) > 0 {
		return string(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, magnetResolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		c.log.Debug().Err(err).Str("guid", event.GUID).Msg("bad redirect link")
		return ""
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("guid", event.GUID).Msg("magnet resolve failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		c.log.Debug().Int("status", resp.StatusCode).Str("guid", event.GUID).Msg("magnet resolve: no redirect")
		return ""
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return ""
	}
	hash, err := torrent.ParseMagnet(location)
	if err != nil {
		c.log.Debug().Err(err).Str("guid", event.GUID).Msg("magnet resolve: bad location")
		return ""
	}

	if err := c.store.Set(ctx, cacheKey, []byte(hash), cache.TTLMagnetResolve); err != nil {
		c.log.Warn().Err(err).Str("guid", event.GUID).Msg("magnet resolve cache write failed")
	}
	return hash
}
