// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

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
	torznabDefaultMaxResults = 100
	torznabResultCacheTTL    = 15 * time.Minute
)

// TorznabResult is one row of a Jackett/Prowlarr aggregate search response.
type TorznabResult struct {
	Title     string `json:"Title"`
	Guid      string `json:"Guid"`
	Link      string `json:"Link"`
	MagnetUri string `json:"MagnetUri"`
	InfoHash  string `json:"InfoHash"`
	Tracker   string `json:"Tracker"`
	Size      int64  `json:"Size"`
	Seeders   int    `json:"Seeders"`
	Imdb      int64  `json:"Imdb"`
	Year      int    `json:"Year"`
}

type torznabResponse struct {
	Results []TorznabResult `json:"Results"`
}

// Torznab searches one tracker through a Jackett/Prowlarr style aggregate
// endpoint. Every raw hit is also published to the ingestion feed so slow
// hash resolution happens off the request path.
type Torznab struct {
	tracker    string
	baseURL    string
	apiKey     string
	maxResults int
	http       *http.Client
	store      cache.Store
	publisher  feed.Publisher
	metrics    *metrics.Manager
	log        zerolog.Logger
}

type TorznabOptions struct {
	BaseURL    string
	APIKey     string
	Tracker    string
	Timeout    time.Duration
	MaxResults int
}

func NewTorznab(opts TorznabOptions, store cache.Store, publisher feed.Publisher, m *metrics.Manager) *Torznab {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = torznabDefaultMaxResults
	}
	return &Torznab{
		tracker:    opts.Tracker,
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		maxResults: opts.MaxResults,
		http:       &http.Client{Timeout: opts.Timeout},
		store:      store,
		publisher:  publisher,
		metrics:    m,
		log:        log.Logger.With().Str("module", "indexer").Str("tracker", opts.Tracker).Logger(),
	}
}

func (t *Torznab) ID() string   { return "torznab:" + t.tracker }
func (t *Torznab) Name() string { return t.tracker }

func (t *Torznab) SupportsCategory(torrent.Category) bool { return true }
func (t *Torznab) SupportsIMDB() bool                     { return true }

var nonWordRe = regexp.MustCompile(`\W+`)

func (t *Torznab) Search(ctx context.Context, criteria torrent.SearchCriteria, emit EmitFunc) error {
	results, err := t.fetchResults(ctx, criteria)
	if err != nil {
		return err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Seeders > results[j].Seeders
	})
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}

	for _, result := range results {
		t.publishResult(ctx, criteria, result)

		hash, ok := torrent.NormalizeInfoHash(result.InfoHash)
		if !ok {
			continue
		}

		parsed := torrent.ParseTitle(result.Title)
		parsed.InfoHash = hash
		parsed.SizeBytes = result.Size
		parsed.Seeders = result.Seeders
		if result.Imdb > 0 {
			parsed.ImdbID = fmt.Sprintf("tt%07d", result.Imdb)
		}

		if !emit(parsed) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (t *Torznab) fetchResults(ctx context.Context, criteria torrent.SearchCriteria) (results []TorznabResult, err error) {
	cacheKey := fmt.Sprintf("torznab:search:%s:%s:%s:%d:%d",
		t.tracker, criteria.ImdbID, criteria.Category, criteria.Season, criteria.Episode)
	if cached, cacheErr := cache.GetTyped[torznabResponse](ctx, t.store, cacheKey); cacheErr == nil && cached != nil {
		return cached.Results, nil
	}

	params := url.Values{}
	params.Set("apikey", t.apiKey)
	params.Add("Tracker[]", t.tracker)
	if criteria.Category == torrent.CategoryMovie {
		params.Set("t", "movie")
		params.Set("imdbid", criteria.ImdbID)
	} else {
		params.Set("Category", strconv.Itoa(CategoryID(criteria.Category)))
		params.Set("Query", nonWordRe.ReplaceAllString(criteria.Query, " "))
	}

	status := ""
	start := time.Now()
	defer func() {
		t.metrics.ObserveClient("torznab", http.MethodGet, status, err != nil, time.Since(start).Seconds())
	}()

	searchURL := fmt.Sprintf("%s/api/v2.0/indexers/all/results?%s", t.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build torznab request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "torznab search on %s failed", t.tracker)
	}
	defer resp.Body.Close()

	status = fmt.Sprintf("%dxx", resp.StatusCode/100)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("torznab search on %s returned %d: %s", t.tracker, resp.StatusCode, body)
	}

	var payload torznabResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode torznab response")
	}

	if err := cache.SetTyped(ctx, t.store, cacheKey, payload, torznabResultCacheTTL); err != nil {
		t.log.Warn().Err(err).Msg("failed to cache search results")
	}
	return payload.Results, nil
}

func (t *Torznab) publishResult(ctx context.Context, criteria torrent.SearchCriteria, result TorznabResult) {
	if t.publisher == nil {
		return
	}

	link := result.MagnetUri
	if link == "" {
		link = result.Link
	}
	imdb := ""
	if result.Imdb > 0 {
		imdb = fmt.Sprintf("tt%07d", result.Imdb)
	}

	event := feed.SearchResultEvent{
		Criteria:   criteria,
		GUID:       result.Guid,
		Title:      result.Title,
		InfoHash:   result.InfoHash,
		MagnetLink: link,
		ImdbID:     imdb,
		Tracker:    result.Tracker,
		SizeBytes:  result.Size,
		Seeders:    result.Seeders,
		Year:       result.Year,
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.log.Warn().Err(err).Str("guid", result.Guid).Msg("failed to publish search result")
	}
}
