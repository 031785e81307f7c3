// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"
)

// Category is the media category a search or torrent applies to.
type Category string

const (
	CategoryMovie  Category = "movie"
	CategorySeries Category = "series"
)

// ParseCategory maps the values used on the wire (Stremio types and
// torznab-ish aliases) onto a Category.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return CategoryMovie, true
	case "series", "tv", "show", "shows":
		return CategorySeries, true
	}
	return "", false
}

// Torrent is a transient search or ingestion candidate. It is never cached
// as-is, only records derived from it are.
type Torrent struct {
	InfoHash      string `json:"info_hash"`
	RawTitle      string `json:"raw_title"`
	Title         string `json:"title"`
	Seasons       []int  `json:"seasons,omitempty"`
	Episodes      []int  `json:"episodes,omitempty"`
	Year          int    `json:"year,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	Codec         string `json:"codec,omitempty"`
	AudioChannels string `json:"audio_channels,omitempty"`
	EpisodeName   string `json:"episode_name,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
	Seeders       int    `json:"seeders,omitempty"`
	ImdbID        string `json:"imdb_id,omitempty"`
}

// SearchCriteria describes what the caller is looking for. Immutable per
// request or ingestion event.
type SearchCriteria struct {
	ImdbID   string   `json:"imdb_id"`
	Category Category `json:"category"`
	Query    string   `json:"query"`
	Year     int      `json:"year,omitempty"`
	Season   int      `json:"season,omitempty"`
	Episode  int      `json:"episode,omitempty"`
}

// ScoredTorrentRecord is the persisted form of a ranked candidate, keyed by
// (imdbId[, season[, episode]]).
type ScoredTorrentRecord struct {
	InfoHash string `json:"info_hash"`
	Title    string `json:"title"`
	ImdbID   string `json:"imdb_id"`
	Score    int    `json:"score"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
}

var infoHashRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// NormalizeInfoHash validates a 40-hex info hash and canonicalizes it to
// uppercase. Hashes are always stored and compared in this form.
func NormalizeInfoHash(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !infoHashRe.MatchString(s) {
		return "", false
	}
	return strings.ToUpper(s), true
}

var (
	// ranges like S01-S10, S1-3, Season 1-10, Seasons 1 to 10
	seasonRangeRe = regexp.MustCompile(`(?i)\bs(?:easons?\s*)?(\d{1,2})\s*(?:-|to)\s*s?(?:eason\s*)?(\d{1,2})\b`)
	seasonEpRe    = regexp.MustCompile(`(?i)s(\d{1,2})\s*[._-]?\s*e(?:p)?(\d{1,3})`)
	seasonOneRe   = regexp.MustCompile(`(?i)\bs(?:eason\s*)?(\d{1,2})\b`)
	episodeRe     = regexp.MustCompile(`(?i)\be(?:p(?:isode)?\s*)?(\d{1,3})\b`)
	crossRe       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
)

// ParseTitle breaks a raw release name into its structured parts. Season and
// episode ranges are resolved into explicit lists so a pack like S01-S10
// carries every season it contains.
func ParseTitle(raw string) Torrent {
	r := rls.ParseString(raw)

	t := Torrent{
		RawTitle:   raw,
		Title:      r.Title,
		Year:       r.Year,
		Resolution: strings.ToLower(r.Resolution),
		Codec:      strings.Join(r.Codec, " "),
		AudioChannels: func() string {
			if r.Channels != "" {
				return r.Channels
			}
			return strings.Join(r.Audio, " ")
		}(),
		EpisodeName: r.Subtitle,
	}

	t.Seasons, t.Episodes = parseSeasonsEpisodes(raw)
	if len(t.Seasons) == 0 && r.Series > 0 {
		t.Seasons = []int{r.Series}
	}
	if len(t.Episodes) == 0 && r.Episode > 0 {
		t.Episodes = []int{r.Episode}
	}
	return t
}

func parseSeasonsEpisodes(raw string) (seasons, episodes []int) {
	if m := seasonRangeRe.FindStringSubmatch(raw); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > 0 && hi >= lo && hi-lo <= 50 {
			for s := lo; s <= hi; s++ {
				seasons = append(seasons, s)
			}
		}
	}
	if len(seasons) == 0 {
		if m := seasonEpRe.FindStringSubmatch(raw); m != nil {
			s, _ := strconv.Atoi(m[1])
			e, _ := strconv.Atoi(m[2])
			return appendUnique(seasons, s), appendUnique(episodes, e)
		}
	}
	if m := crossRe.FindStringSubmatch(raw); m != nil {
		s, _ := strconv.Atoi(m[1])
		e, _ := strconv.Atoi(m[2])
		seasons = appendUnique(seasons, s)
		episodes = appendUnique(episodes, e)
		return seasons, episodes
	}
	if len(seasons) == 0 {
		if m := seasonOneRe.FindStringSubmatch(raw); m != nil {
			if s, _ := strconv.Atoi(m[1]); s > 0 {
				seasons = []int{s}
			}
		}
	}
	if m := episodeRe.FindStringSubmatch(raw); m != nil {
		if e, _ := strconv.Atoi(m[1]); e > 0 {
			episodes = []int{e}
		}
	}
	return seasons, episodes
}

func appendUnique(list []int, v int) []int {
	if v <= 0 {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// IsSeasonPack reports whether the torrent covers whole seasons rather than
// a single episode.
func (t Torrent) IsSeasonPack() bool {
	return len(t.Seasons) > 0 && len(t.Episodes) == 0
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
