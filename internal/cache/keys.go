// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"fmt"
	"strings"
	"time"
)

// Cache lifetimes. Search results age out within a week; provider-side
// lookups are far cheaper to refresh and keep shorter windows.
const (
	TTLMediaInfo      = 30 * 24 * time.Hour
	TTLDirectDL       = 24 * time.Hour
	TTLInstantFileSet = 8 * time.Hour
	TTLAvailability   = 24 * time.Hour
	TTLStreamLink     = 4 * time.Hour
	TTLScoredTorrent  = 7 * 24 * time.Hour
	TTLMagnetResolve  = 8 * 7 * 24 * time.Hour
	TTLIngestLock     = time.Hour
)

// UniqueSearchSet tracks (imdb, season, episode) tuples ever requested, for
// the unique-search counter only.
const UniqueSearchSet = "stream_request"

func MediaInfoKey(imdbID string) string {
	return "cinemeta:" + imdbID
}

func DirectDLKey(infoHash string) string {
	return "premiumize:directdl:" + strings.ToUpper(infoHash)
}

// StreamLinkKey identifies a resolved link. The unique key is chosen by the
// provider; providers that cannot share links across users bake a per-user
// token hash into it.
func StreamLinkKey(provider, infoHash, uniqueKey string) string {
	return fmt.Sprintf("%s:stream_links:%s:%s", strings.ToLower(provider), strings.ToUpper(infoHash), uniqueKey)
}

func InstantFileSetKey(infoHash string) string {
	return "rd:instant_file_set:torrent:" + strings.ToUpper(infoHash)
}

// AvailabilityKey holds the availability flag for a hash at a provider. The
// stored boolean records whether the torrent IS available; a false value
// within its TTL short-circuits repeat provider queries.
func AvailabilityKey(provider, infoHash string) string {
	return fmt.Sprintf("%s:available:%s", strings.ToLower(provider), strings.ToUpper(infoHash))
}

// TorrentsKey names the ranked candidate set for a title, optionally scoped
// to a season or an episode.
func TorrentsKey(imdbID string, season, episode int) string {
	key := "torrents:" + imdbID
	if season > 0 {
		key += fmt.Sprintf(":%d", season)
		if episode > 0 {
			key += fmt.Sprintf(":%d", episode)
		}
	}
	return key
}

// TorrentMetaKey holds the ScoredTorrentRecord for a ranked set member.
func TorrentMetaKey(infoHash string) string {
	return "torrents:meta:" + strings.ToUpper(infoHash)
}

func MagnetResolveKey(guid string) string {
	return "magnet:resolve:" + guid
}

func IngestLockKey(guid string) string {
	return "lock:ingest:" + guid
}
