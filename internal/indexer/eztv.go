// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/feed"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

// EZTV queries an eztv-compatible API directly. Series only; the API is
// keyed by the numeric part of the IMDB id.
type EZTV struct {
	baseURL   string
	limit     int
	http      *http.Client
	publisher feed.Publisher
	metrics   *metrics.Manager
	log       zerolog.Logger
}

type eztvTorrent struct {
	Title     string `json:"title"`
	Hash      string `json:"hash"`
	MagnetURL string `json:"magnet_url"`
	Season    string `json:"season"`
	Episode   string `json:"episode"`
	SizeBytes string `json:"size_bytes"`
	Seeds     int    `json:"seeds"`
}

type eztvResponse struct {
	Torrents []eztvTorrent `json:"torrents"`
}

func NewEZTV(baseURL string, limit int, publisher feed.Publisher, m *metrics.Manager) *EZTV {
	if limit <= 0 {
		limit = torznabDefaultMaxResults
	}
	return &EZTV{
		baseURL:   strings.TrimRight(baseURL, "/"),
		limit:     limit,
		http:      &http.Client{Timeout: 10 * time.Second},
		publisher: publisher,
		metrics:   m,
		log:       log.Logger.With().Str("module", "indexer").Str("tracker", "eztv").Logger(),
	}
}

func (e *EZTV) ID() string   { return "eztv" }
func (e *EZTV) Name() string { return "EZTV" }

func (e *EZTV) SupportsCategory(category torrent.Category) bool {
	return category == torrent.CategorySeries
}

func (e *EZTV) SupportsIMDB() bool { return true }

func (e *EZTV) Search(ctx context.Context, criteria torrent.SearchCriteria, emit EmitFunc) error {
	torrents, err := e.fetch(ctx, criteria.ImdbID)
	if err != nil {
		return err
	}

	for _, result := range torrents {
		e.publish(ctx, criteria, result)

		hash, ok := torrent.NormalizeInfoHash(result.Hash)
		if !ok {
			continue
		}

		parsed := torrent.ParseTitle(result.Title)
		parsed.InfoHash = hash
		parsed.Seeders = result.Seeds
		parsed.ImdbID = criteria.ImdbID
		if size, err := strconv.ParseInt(result.SizeBytes, 10, 64); err == nil {
			parsed.SizeBytes = size
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

func (e *EZTV) fetch(ctx context.Context, imdbID string) (torrents []eztvTorrent, err error) {
	status := ""
	start := time.Now()
	defer func() {
		e.metrics.ObserveClient("eztv", http.MethodGet, status, err != nil, time.Since(start).Seconds())
	}()

	searchURL := fmt.Sprintf("%s/api/get-torrents?imdb_id=%s&limit=%d&page=1",
		e.baseURL, strings.TrimPrefix(imdbID, "tt"), e.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build eztv request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "eztv search failed")
	}
	defer resp.Body.Close()

	status = fmt.Sprintf("%dxx", resp.StatusCode/100)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("eztv search returned %d", resp.StatusCode)
	}

	var payload eztvResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode eztv response")
	}
	return payload.Torrents, nil
}

func (e *EZTV) publish(ctx context.Context, criteria torrent.SearchCriteria, result eztvTorrent) {
	if e.publisher == nil {
		return
	}

	size, _ := strconv.ParseInt(result.SizeBytes, 10, 64)
	event := feed.SearchResultEvent{
		Criteria:   criteria,
		GUID:       "eztv:" + result.Hash,
		Title:      result.Title,
		InfoHash:   result.Hash,
		MagnetLink: result.MagnetURL,
		ImdbID:     criteria.ImdbID,
		Tracker:    "eztv",
		SizeBytes:  size,
		Seeders:    result.Seeds,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Msg("failed to publish search result")
	}
}
