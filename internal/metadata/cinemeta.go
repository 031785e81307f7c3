// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metadata looks up title metadata from a Cinemeta-compatible
// endpoint, with long-lived caching.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

// Video is one playable entry of a series listing.
type Video struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// MediaInfo is the subset of Cinemeta's meta object the search path needs.
type MediaInfo struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	ImdbID      string  `json:"imdb_id"`
	Description string  `json:"description,omitempty"`
	ReleaseInfo string  `json:"releaseInfo,omitempty"`
	Videos      []Video `json:"videos,omitempty"`
}

// Year returns the first year of the release info, which reads "2000" for
// movies and "2000-2014" or "2000-" for shows. Zero when unknown.
func (m MediaInfo) Year() int {
	first, _, _ := strings.Cut(m.ReleaseInfo, "-")
	year, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0
	}
	return year
}

type Client struct {
	baseURL string
	http    *http.Client
	store   cache.Store
	metrics *metrics.Manager
}

func NewClient(baseURL string, store cache.Store, m *metrics.Manager) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		metrics: m,
	}
}

// GetMediaInfo returns the metadata for an IMDB id, serving from the cache
// when a lookup within the last 30 days succeeded. A title the upstream does
// not know yields (nil, nil).
func (c *Client) GetMediaInfo(ctx context.Context, category torrent.Category, imdbID string) (*MediaInfo, error) {
	cached, err := cache.GetTyped[MediaInfo](ctx, c.store, cache.MediaInfoKey(imdbID))
	if err != nil {
		log.Warn().Err(err).Str("imdb", imdbID).Msg("media info cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	info, err := c.fetch(ctx, category, imdbID)
	if err != nil || info == nil {
		return nil, err
	}

	if err := cache.SetTyped(ctx, c.store, cache.MediaInfoKey(imdbID), *info, cache.TTLMediaInfo); err != nil {
		log.Warn().Err(err).Str("imdb", imdbID).Msg("media info cache write failed")
	}
	return info, nil
}

func (c *Client) fetch(ctx context.Context, category torrent.Category, imdbID string) (info *MediaInfo, err error) {
	apiURL := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, category, imdbID)

	status := ""
	start := time.Now()
	defer func() {
		c.metrics.ObserveClient("cinemeta", http.MethodGet, status, err != nil, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build cinemeta request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cinemeta request failed")
	}
	defer resp.Body.Close()

	status = statusClass(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("cinemeta returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Meta *MediaInfo `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode cinemeta response")
	}
	if payload.Meta == nil {
		log.Debug().Str("imdb", imdbID).Msg("no metadata for title")
		return nil, nil
	}
	return payload.Meta, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
