// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/torrent"
)

const (
	rdPollAttempts  = 5
	rdPollDelayStep = 500 * time.Millisecond
)

// InstantFileSet records which file ids of a torrent the provider has
// cached, written at search time and read back on deferred resolution.
type InstantFileSet struct {
	InfoHash string `json:"info_hash"`
	FileIDs  []int  `json:"file_ids"`
}

// RealDebrid resolves through real-debrid.com's instant availability. The
// search path never mutates provider state; it hands out an internal
// deferred reference that ResolveDeferred exchanges for a playable URL on
// first use. Links are bound to the account, so nothing link-shaped is
// shared across users.
type RealDebrid struct {
	token   string
	client  *rdClient
	store   cache.Store
	log     zerolog.Logger
}

func NewRealDebrid(token string, store cache.Store, m *metrics.Manager) *RealDebrid {
	return NewRealDebridWithURL(realDebridAPIURL, token, store, m)
}

func NewRealDebridWithURL(baseURL, token string, store cache.Store, m *metrics.Manager) *RealDebrid {
	return &RealDebrid{
		token:  token,
		client: newRDClient(baseURL, token, m),
		store:  store,
		log:    log.Logger.With().Str("module", "debrid").Str("provider", "realdebrid").Logger(),
	}
}

func (r *RealDebrid) Name() string       { return "RealDebrid" }
func (r *RealDebrid) ShortName() string  { return "RD" }
func (r *RealDebrid) ProviderID() string { return "realdebrid" }
func (r *RealDebrid) SharesCache() bool  { return false }

// Resolve walks the availability state machine. The availability flag
// stores "the torrent IS available": a false flag within its TTL
// short-circuits without contacting the provider, and the flag is written
// on every exit path, including errors.
func (r *RealDebrid) Resolve(ctx context.Context, infoHash string, season, episode int) (link *StreamLink, err error) {
	flagKey := cache.AvailabilityKey(r.ProviderID(), infoHash)
	if flag, flagErr := cache.GetTyped[bool](ctx, r.store, flagKey); flagErr == nil && flag != nil && !*flag {
		r.log.Debug().Str("info_hash", infoHash).Msg("torrent known unavailable")
		return nil, nil
	}

	found := false
	defer func() {
		if setErr := cache.SetTyped(context.WithoutCancel(ctx), r.store, flagKey, found, cache.TTLAvailability); setErr != nil {
			r.log.Warn().Err(setErr).Msg("failed to write availability flag")
		}
	}()

	sets, err := r.client.InstantAvailability(ctx, infoHash)
	if err != nil {
		return nil, err
	}

	for _, set := range sets {
		fileID, ok := findStreamableFileID(set, season, episode)
		if !ok {
			continue
		}

		var file rdInstantFile
		for _, f := range set {
			if f.ID == fileID {
				file = f
				break
			}
		}

		fileIDs := make([]int, len(set))
		for i, f := range set {
			fileIDs[i] = f.ID
		}
		if err := cache.SetTyped(ctx, r.store, cache.InstantFileSetKey(infoHash),
			InstantFileSet{InfoHash: strings.ToUpper(infoHash), FileIDs: fileIDs}, cache.TTLInstantFileSet); err != nil {
			return nil, errors.Wrap(err, "persist instant file set")
		}

		found = true
		// served by the deferred-resolution route
		return &StreamLink{
			URL:       fmt.Sprintf("/%s/%s/%s/%d", r.ProviderID(), r.token, strings.ToUpper(infoHash), fileID),
			Name:      file.Filename,
			SizeBytes: file.Filesize,
		}, nil
	}

	r.log.Debug().Str("info_hash", infoHash).Msg("no suitable file set")
	return nil, nil
}

// findStreamableFileID picks the file to stream from one availability set:
// the largest video without a season/episode, otherwise the first video
// matching the episode pattern scanning largest first.
func findStreamableFileID(set []rdInstantFile, season, episode int) (int, bool) {
	var videos []rdInstantFile
	for _, f := range set {
		if torrent.IsVideoFile(f.Filename) {
			videos = append(videos, f)
		}
	}
	if len(videos) == 0 {
		return 0, false
	}

	sort.SliceStable(videos, func(i, j int) bool { return videos[i].Filesize > videos[j].Filesize })

	if season == 0 || episode == 0 {
		return videos[0].ID, true
	}

	for _, f := range videos {
		if torrent.MatchesEpisode(strings.ToLower(f.Filename), season, episode) {
			return f.ID, true
		}
	}
	return 0, false
}

// ResolveDeferred exchanges a deferred reference for a playable URL: reload
// the persisted file set, re-add the magnet, select the same files, poll
// until downloaded, pick the link positionally and unrestrict it. The
// result is cached per token so repeat plays skip the provider entirely.
func (r *RealDebrid) ResolveDeferred(ctx context.Context, infoHash string, fileID int) (*StreamLink, error) {
	linkKey := cache.StreamLinkKey(r.ShortName(), infoHash, r.uniqueKey(fileID))
	if cached, err := cache.GetTyped[StreamLink](ctx, r.store, linkKey); err == nil && cached != nil {
		return cached, nil
	}

	fileSet, err := cache.GetTyped[InstantFileSet](ctx, r.store, cache.InstantFileSetKey(infoHash))
	if err != nil {
		return nil, err
	}
	if fileSet == nil {
		r.log.Debug().Str("info_hash", infoHash).Msg("no persisted file set")
		return nil, nil
	}

	torrentID, err := r.client.AddMagnet(ctx, fileSet.InfoHash)
	if err != nil || torrentID == "" {
		return nil, err
	}

	link, err := r.fetchUnrestricted(ctx, torrentID, fileSet, fileID)
	if err != nil || link == nil {
		// the transient torrent is useless without a link
		if delErr := r.client.DeleteTorrent(context.WithoutCancel(ctx), torrentID); delErr != nil {
			r.log.Debug().Err(delErr).Str("torrent_id", torrentID).Msg("failed to delete torrent")
		}
		return nil, err
	}

	if err := cache.SetTyped(ctx, r.store, linkKey, *link, cache.TTLStreamLink); err != nil {
		r.log.Warn().Err(err).Msg("failed to cache stream link")
	}
	return link, nil
}

func (r *RealDebrid) fetchUnrestricted(ctx context.Context, torrentID string, fileSet *InstantFileSet, fileID int) (*StreamLink, error) {
	if err := r.client.SelectFiles(ctx, torrentID, fileSet.FileIDs); err != nil {
		return nil, err
	}

	link, err := r.pollTorrentLink(ctx, torrentID, fileID)
	if err != nil || link == "" {
		return nil, err
	}

	unrestricted, err := r.client.Unrestrict(ctx, link)
	if err != nil {
		return nil, err
	}
	return &StreamLink{
		URL:       unrestricted.Download,
		Name:      unrestricted.Filename,
		SizeBytes: unrestricted.Filesize,
	}, nil
}

// pollTorrentLink waits for the torrent to reach "downloaded", sleeping
// n*0.5s between the bounded attempts, then looks the link up positionally
// among the currently selected files.
func (r *RealDebrid) pollTorrentLink(ctx context.Context, torrentID string, fileID int) (string, error) {
	var link string
	err := retry.Do(
		func() error {
			info, err := r.client.TorrentInfo(ctx, torrentID)
			if err != nil {
				return err
			}
			if info.Status != "downloaded" {
				return errors.Errorf("torrent status is %q", info.Status)
			}

			position := 0
			for _, f := range info.Files {
				if f.Selected == 0 {
					continue
				}
				if f.ID == fileID {
					if position < len(info.Links) {
						link = info.Links[position]
						return nil
					}
					return retry.Unrecoverable(errors.New("selected file has no link"))
				}
				position++
			}
			return retry.Unrecoverable(errors.Errorf("file %d is not among the selected files", fileID))
		},
		retry.Context(ctx),
		retry.Attempts(rdPollAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n) * rdPollDelayStep
		}),
	)
	if err != nil {
		r.log.Debug().Err(err).Str("torrent_id", torrentID).Msg("torrent never reached downloaded")
		return "", nil
	}
	return link, nil
}

func (r *RealDebrid) uniqueKey(fileID int) string {
	tokenHash := sha256.Sum256([]byte(r.token))
	return fmt.Sprintf("%s:%d", hex.EncodeToString(tokenHash[:]), fileID)
}
