// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

const realDebridAPIURL = "https://api.real-debrid.com/rest/1.0"

// UpstreamError carries a provider's non-2xx answer.
type UpstreamError struct {
	Provider   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool {
	t, ok := target.(*UpstreamError)
	if !ok {
		return false
	}
	return (t.Provider == "" || t.Provider == e.Provider) &&
		(t.StatusCode == 0 || t.StatusCode == e.StatusCode)
}

type rdInstantFile struct {
	ID       int
	Filename string
	Filesize int64
}

type rdTorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type rdTorrentInfo struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Files  []rdTorrentFile `json:"files"`
	Links  []string        `json:"links"`
}

type rdUnrestrictedLink struct {
	Download string `json:"download"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

type rdClient struct {
	baseURL string
	token   string
	http    *http.Client
	metrics *metrics.Manager
	log     zerolog.Logger
}

func newRDClient(baseURL, token string, m *metrics.Manager) *rdClient {
	return &rdClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		metrics: m,
		log:     log.Logger.With().Str("module", "debrid").Str("provider", "realdebrid").Logger(),
	}
}

func (c *rdClient) request(ctx context.Context, method, apiPath string, form url.Values, out any) (err error) {
	status := ""
	start := time.Now()
	defer func() {
		c.metrics.ObserveClient("real_debrid", method, status, err != nil, time.Since(start).Seconds())
	}()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath, body)
	if err != nil {
		return errors.Wrap(err, "build real-debrid request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "real-debrid request failed")
	}
	defer resp.Body.Close()

	status = statusClass(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Provider: "real_debrid", StatusCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode real-debrid response")
	}
	return nil
}

// InstantAvailability returns the provider's candidate file sets for a
// hash, in stable id order. An empty result means nothing is cached.
func (c *rdClient) InstantAvailability(ctx context.Context, infoHash string) ([][]rdInstantFile, error) {
	var payload map[string]json.RawMessage
	if err := c.request(ctx, http.MethodGet, "/torrents/instantAvailability/"+strings.ToLower(infoHash), nil, &payload); err != nil {
		return nil, err
	}

	var sets [][]rdInstantFile
	for hash, raw := range payload {
		if !strings.EqualFold(hash, infoHash) {
			continue
		}

		// unavailable hashes answer with an empty array here, so decode
		// leniently
		var entry struct {
			Rd []map[string]struct {
				Filename string `json:"filename"`
				Filesize int64  `json:"filesize"`
			} `json:"rd"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}

		for _, rawSet := range entry.Rd {
			var set []rdInstantFile
			for id, info := range rawSet {
				fileID, err := strconv.Atoi(id)
				if err != nil {
					continue
				}
				set = append(set, rdInstantFile{ID: fileID, Filename: info.Filename, Filesize: info.Filesize})
			}
			sort.Slice(set, func(i, j int) bool { return set[i].ID < set[j].ID })
			if len(set) > 0 {
				sets = append(sets, set)
			}
		}
	}
	return sets, nil
}

// AddMagnet registers the hash with the provider and returns the transient
// torrent id.
func (c *rdClient) AddMagnet(ctx context.Context, infoHash string) (string, error) {
	magnetURI, err := torrent.BuildMagnet(infoHash, "")
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("magnet", magnetURI)

	var payload struct {
		ID string `json:"id"`
	}
	if err := c.request(ctx, http.MethodPost, "/torrents/addMagnet", form, &payload); err != nil {
		return "", err
	}
	return payload.ID, nil
}

func (c *rdClient) TorrentInfo(ctx context.Context, torrentID string) (*rdTorrentInfo, error) {
	var payload rdTorrentInfo
	if err := c.request(ctx, http.MethodGet, "/torrents/info/"+torrentID, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *rdClient) SelectFiles(ctx context.Context, torrentID string, fileIDs []int) error {
	ids := make([]string, len(fileIDs))
	for i, id := range fileIDs {
		ids[i] = strconv.Itoa(id)
	}

	form := url.Values{}
	form.Set("files", strings.Join(ids, ","))
	return c.request(ctx, http.MethodPost, "/torrents/selectFiles/"+torrentID, form, nil)
}

func (c *rdClient) Unrestrict(ctx context.Context, link string) (*rdUnrestrictedLink, error) {
	form := url.Values{}
	form.Set("link", link)

	var payload rdUnrestrictedLink
	if err := c.request(ctx, http.MethodPost, "/unrestrict/link", form, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *rdClient) DeleteTorrent(ctx context.Context, torrentID string) error {
	return c.request(ctx, http.MethodDelete, "/torrents/delete/"+torrentID, nil, nil)
}
