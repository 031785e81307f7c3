// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"regexp"
	"strings"
)

const (
	seriesWeight    = 20
	nameMismatch    = -1000
	seasonMismatch  = -100
	scoreSeriesPack = 3
	scoreSeasonPack = 2
	scoreEpisode    = 1
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeTitle(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

// TitleMatches compares the parsed title against the wanted one, ignoring
// case and punctuation.
func (t Torrent) TitleMatches(title string) bool {
	return normalizeTitle(t.Title) == normalizeTitle(title)
}

// ScoreSeries ranks how well the torrent covers a wanted season/episode.
// Bigger packs outrank single episodes because one cached pack answers many
// future requests: a multi-season pack containing the season scores 3, a
// single-season pack 2 and an exact episode 1. A torrent that names seasons
// or episodes excluding the wanted ones scores a large negative.
func (t Torrent) ScoreSeries(season, episode int) int {
	if season == 0 {
		return 0
	}
	if len(t.Seasons) == 0 {
		return 0
	}
	if !containsInt(t.Seasons, season) {
		return seasonMismatch
	}
	if len(t.Episodes) == 0 {
		if len(t.Seasons) > 1 {
			return scoreSeriesPack
		}
		return scoreSeasonPack
	}
	if episode == 0 || containsInt(t.Episodes, episode) {
		return scoreEpisode
	}
	return seasonMismatch
}

// QualityRank orders resolutions for display sorting; higher is better.
func QualityRank(resolution string) int {
	switch strings.ToLower(resolution) {
	case "2160p", "4320p":
		return 3
	case "1080p":
		return 2
	case "720p":
		return 1
	default:
		return 0
	}
}

// MatchScore ranks the torrent against a search. The title is gating: a
// mismatched name can never outrank a matching one no matter its quality.
// Within matching names the season/episode coverage dominates and resolution
// breaks ties.
func (t Torrent) MatchScore(title string, year, season, episode int) int {
	q := QualityRank(t.Resolution)
	if !t.TitleMatches(title) {
		return nameMismatch + q
	}
	score := t.ScoreSeries(season, episode)*seriesWeight + q
	if year > 0 && t.Year > 0 {
		if t.Year == year {
			score++
		} else {
			score += seasonMismatch
		}
	}
	return score
}
