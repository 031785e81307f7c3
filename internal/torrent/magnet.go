// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
)

// BuildMagnet constructs a magnet URI for a canonical info hash.
func BuildMagnet(infoHash, displayName string) (string, error) {
	hash, ok := NormalizeInfoHash(infoHash)
	if !ok {
		return "", errors.Errorf("invalid info hash: %q", infoHash)
	}

	var h metainfo.Hash
	if err := h.FromHexString(strings.ToLower(hash)); err != nil {
		return "", errors.Wrap(err, "parse info hash")
	}

	m := metainfo.Magnet{
		InfoHash:    h,
		DisplayName: displayName,
	}
	return m.String(), nil
}

// ParseMagnet extracts the canonical uppercase info hash from a magnet URI.
func ParseMagnet(uri string) (string, error) {
	m, err := metainfo.ParseMagnetUri(uri)
	if err != nil {
		return "", errors.Wrap(err, "parse magnet uri")
	}
	return strings.ToUpper(m.InfoHash.HexString()), nil
}
