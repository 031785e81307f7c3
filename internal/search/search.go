// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package search runs the per-request pipeline: fan out across indexers,
// resolve candidates through a debrid provider and aggregate the links into
// a capped, quality-ranked stream list.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/indexer"
	"github.com/aulendur/olorin/internal/metadata"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

// Channel capacities. A slow stage throttles its producers by blocking
// their sends.
const (
	candidateBuffer = 5
	resultBuffer    = 10

	defaultMaxResults      = 9
	defaultResolverWorkers = 5
	defaultIdleTimeout     = 5 * time.Second
)

// Stream is one playable entry of a response, in the shape the catalog
// client consumes.
type Stream struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// StreamResponse wraps the stream list. Cached is only ever read by
// metrics.
type StreamResponse struct {
	Streams []Stream `json:"streams"`
	Error   string   `json:"error,omitempty"`
	Cached  bool     `json:"cached"`
}

// MetadataSource looks a title up by IMDB id.
type MetadataSource interface {
	GetMediaInfo(ctx context.Context, category torrent.Category, imdbID string) (*metadata.MediaInfo, error)
}

// Service owns the pipeline configuration shared by all requests.
type Service struct {
	meta        MetadataSource
	indexers    []indexer.Indexer
	store       cache.Store
	metrics     *metrics.Manager
	maxResults  int
	workers     int
	idleTimeout time.Duration
	log         zerolog.Logger
}

func NewService(meta MetadataSource, indexers []indexer.Indexer, store cache.Store, m *metrics.Manager, maxResults, workers int) *Service {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if workers <= 0 {
		workers = defaultResolverWorkers
	}
	return &Service{
		meta:        meta,
		indexers:    indexers,
		store:       store,
		metrics:     m,
		maxResults:  maxResults,
		workers:     workers,
		idleTimeout: defaultIdleTimeout,
		log:         log.Logger.With().Str("module", "search").Logger(),
	}
}

// Search answers one stream request. Failures never escape: anything
// unexpected degrades to an empty list with a generic error, and the
// request observation is recorded on every exit path.
func (s *Service) Search(ctx context.Context, resolver debrid.Resolver, category torrent.Category, imdbID string, season, episode int) (resp StreamResponse) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRequest(string(category), resolver.ProviderID(), resp.Cached, resp.Error != "", time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("imdb", imdbID).Msg("search pipeline panicked")
			resp = StreamResponse{Streams: []Stream{}, Error: "error searching"}
		}
	}()

	return s.search(ctx, resolver, category, imdbID, season, episode)
}

func (s *Service) search(ctx context.Context, resolver debrid.Resolver, category torrent.Category, imdbID string, season, episode int) StreamResponse {
	member := fmt.Sprintf("%s:%d:%d", imdbID, season, episode)
	if added, err := s.store.AddUnique(ctx, cache.UniqueSearchSet, member); err == nil && added {
		s.log.Debug().Str("imdb", imdbID).Msg("unique search")
		s.metrics.CountUniqueSearch()
	}

	info, err := s.meta.GetMediaInfo(ctx, category, imdbID)
	if err != nil || info == nil {
		s.log.Error().Err(err).Str("imdb", imdbID).Str("category", string(category)).Msg("error getting media info")
		return StreamResponse{Streams: []Stream{}, Error: "error getting media info"}
	}

	criteria := torrent.SearchCriteria{
		ImdbID:   imdbID,
		Category: category,
		Query:    info.Name,
		Year:     info.Year(),
		Season:   season,
		Episode:  episode,
	}

	links := s.runPipeline(ctx, resolver, criteria)
	return StreamResponse{Streams: s.buildStreams(resolver, category, links)}
}

// runPipeline wires fanout, resolver pool and aggregator through bounded
// channels with one shared cancellation, then waits for every stage to
// stand down before returning.
func (s *Service) runPipeline(ctx context.Context, resolver debrid.Resolver, criteria torrent.SearchCriteria) []resolved {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	candidates := make(chan torrent.Torrent, candidateBuffer)
	results := make(chan resolved, resultBuffer)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(candidates)
		s.fanout(ctx, criteria, candidates)
	}()
	go func() {
		defer wg.Done()
		defer close(results)
		s.resolveAll(ctx, resolver, criteria, candidates, results)
	}()

	links := s.collect(ctx, results)

	cancel()
	wg.Wait()
	return links
}
