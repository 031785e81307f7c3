// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var videoExtensions = map[string]bool{
	".3g2":  true,
	".3gp":  true,
	".avi":  true,
	".flv":  true,
	".m4v":  true,
	".mk3d": true,
	".mkv":  true,
	".mov":  true,
	".mp2":  true,
	".mp4":  true,
	".mpe":  true,
	".mpeg": true,
	".mpg":  true,
	".mpv":  true,
	".ogm":  true,
	".ts":   true,
	".webm": true,
	".wmv":  true,
}

// IsVideoFile reports whether the path looks like a playable video.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// MatchesEpisode reports whether a filename names the given season/episode
// in any of the usual forms (S05E10, 5x10, s05.e10).
func MatchesEpisode(filename string, season, episode int) bool {
	if season <= 0 || episode <= 0 {
		return false
	}
	patterns := []string{
		fmt.Sprintf(`(?i)s0?%d[\s._-]*e(?:p)?0?%d(?:\D|$)`, season, episode),
		fmt.Sprintf(`(?i)\b0?%dx0?%d(?:\D|$)`, season, episode),
		fmt.Sprintf(`(?i)\bseason[\s._-]*0?%d[\s._-]*episode[\s._-]*0?%d(?:\D|$)`, season, episode),
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(filename) {
			return true
		}
	}
	return false
}
