// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/torrent"
)

func TestMediaInfoYear(t *testing.T) {
	tests := []struct {
		name        string
		releaseInfo string
		expected    int
	}{
		{name: "movie_year", releaseInfo: "2023", expected: 2023},
		{name: "show_range", releaseInfo: "1994-2004", expected: 1994},
		{name: "running_show", releaseInfo: "2019-", expected: 2019},
		{name: "empty", releaseInfo: "", expected: 0},
		{name: "garbage", releaseInfo: "soon", expected: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			info := MediaInfo{ReleaseInfo: tt.releaseInfo}
			assert.Equal(t, tt.expected, info.Year())
		})
	}
}

func TestGetMediaInfoFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/meta/movie/tt0133093.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meta":{"id":"tt0133093","type":"movie","name":"The Matrix","imdb_id":"tt0133093","releaseInfo":"1999"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, cache.NewMemoryStore(), nil)

	info, err := client.GetMediaInfo(context.Background(), torrent.CategoryMovie, "tt0133093")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "The Matrix", info.Name)
	assert.Equal(t, 1999, info.Year())

	// second lookup is served from the cache
	again, err := client.GetMediaInfo(context.Background(), torrent.CategoryMovie, "tt0133093")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetMediaInfoUnknownTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, cache.NewMemoryStore(), nil)

	info, err := client.GetMediaInfo(context.Background(), torrent.CategorySeries, "tt0000000")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetMediaInfoUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, cache.NewMemoryStore(), nil)

	_, err := client.GetMediaInfo(context.Background(), torrent.CategoryMovie, "tt1")
	require.Error(t, err)
}
