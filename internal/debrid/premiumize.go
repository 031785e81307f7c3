// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

const premiumizeAPIURL = "https://www.premiumize.me/api"

// DirectDLFile is one file of a cached transfer listing.
type DirectDLFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size"`
	Link      string `json:"link"`
}

type directDLResponse struct {
	Status  string         `json:"status"`
	Content []DirectDLFile `json:"content"`
}

// Premiumize resolves through premiumize.me's direct-download listings.
// Listings are account-independent, so the 24h listing cache is shared
// across users.
type Premiumize struct {
	token   string
	baseURL string
	http    *http.Client
	store   cache.Store
	metrics *metrics.Manager
	log     zerolog.Logger
}

func NewPremiumize(token string, store cache.Store, m *metrics.Manager) *Premiumize {
	return NewPremiumizeWithURL(premiumizeAPIURL, token, store, m)
}

func NewPremiumizeWithURL(baseURL, token string, store cache.Store, m *metrics.Manager) *Premiumize {
	return &Premiumize{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
		metrics: m,
		log:     log.Logger.With().Str("module", "debrid").Str("provider", "premiumize").Logger(),
	}
}

func (p *Premiumize) Name() string       { return "Premiumize" }
func (p *Premiumize) ShortName() string  { return "PM" }
func (p *Premiumize) ProviderID() string { return "premiumize" }
func (p *Premiumize) SharesCache() bool  { return true }

func (p *Premiumize) Resolve(ctx context.Context, infoHash string, season, episode int) (*StreamLink, error) {
	listing, err := p.directDL(ctx, infoHash)
	if err != nil {
		return nil, err
	}
	if listing == nil || len(listing.Content) == 0 {
		p.log.Debug().Str("info_hash", infoHash).Msg("torrent has no cached content")
		return nil, nil
	}
	return selectStreamFile(listing.Content, season, episode), nil
}

// directDL returns the cached listing when one exists, otherwise asks the
// provider. Any non-2xx answer means "not cached there" and is not retried.
func (p *Premiumize) directDL(ctx context.Context, infoHash string) (listing *directDLResponse, err error) {
	cacheKey := cache.DirectDLKey(infoHash)
	cached, err := cache.GetTyped[directDLResponse](ctx, p.store, cacheKey)
	if err == nil && cached != nil {
		return cached, nil
	}

	status := ""
	start := time.Now()
	defer func() {
		p.metrics.ObserveClient("premiumize", http.MethodPost, status, err != nil, time.Since(start).Seconds())
	}()

	magnetURI, err := torrent.BuildMagnet(infoHash, "")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("src", magnetURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/transfer/directdl?apikey="+url.QueryEscape(p.token),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build directdl request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "directdl request failed")
	}
	defer resp.Body.Close()

	status = statusClass(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.Debug().Int("status", resp.StatusCode).Str("info_hash", infoHash).Msg("directdl lookup failed")
		return nil, nil
	}

	var payload directDLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode directdl response")
	}

	if err := cache.SetTyped(ctx, p.store, cacheKey, payload, cache.TTLDirectDL); err != nil {
		p.log.Warn().Err(err).Msg("failed to cache directdl listing")
	}
	return &payload, nil
}

// selectStreamFile picks the playable file from a listing. Without a
// season/episode the single largest file wins regardless of its name. With
// one, files are scanned largest first and the first video matching the
// episode pattern wins.
func selectStreamFile(files []DirectDLFile, season, episode int) *StreamLink {
	sorted := append([]DirectDLFile{}, files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SizeBytes > sorted[j].SizeBytes
	})

	if season == 0 || episode == 0 {
		f := sorted[0]
		return &StreamLink{URL: f.Link, Name: path.Base(f.Path), SizeBytes: f.SizeBytes}
	}

	for _, f := range sorted {
		if !torrent.IsVideoFile(f.Path) {
			continue
		}
		if torrent.MatchesEpisode(strings.ToLower(path.Base(f.Path)), season, episode) {
			return &StreamLink{URL: f.Link, Name: path.Base(f.Path), SizeBytes: f.SizeBytes}
		}
	}
	return nil
}
