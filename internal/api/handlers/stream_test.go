// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/search"
	"github.com/aulendur/olorin/internal/torrent"
)

const testHash = "C9A6C1748B5DDBE4FCF61F69F6CEAE1B415FCAB1"

type fakeSearcher struct {
	resp       search.StreamResponse
	gotImdb    string
	gotSeason  int
	gotEpisode int
}

func (f *fakeSearcher) Search(_ context.Context, _ debrid.Resolver, _ torrent.Category, imdbID string, season, episode int) search.StreamResponse {
	f.gotImdb = imdbID
	f.gotSeason = season
	f.gotEpisode = episode
	return f.resp
}

type fakeResolver struct {
	link *debrid.StreamLink
	err  error
}

func (f *fakeResolver) Name() string       { return "Fake" }
func (f *fakeResolver) ShortName() string  { return "FK" }
func (f *fakeResolver) ProviderID() string { return "fake" }
func (f *fakeResolver) SharesCache() bool  { return true }

func (f *fakeResolver) Resolve(context.Context, string, int, int) (*debrid.StreamLink, error) {
	return nil, nil
}

func (f *fakeResolver) ResolveDeferred(context.Context, string, int) (*debrid.StreamLink, error) {
	return f.link, f.err
}

type fakeRegistry struct {
	resolver debrid.Resolver
}

func (f fakeRegistry) Get(providerID, _ string) (debrid.Resolver, bool) {
	if providerID != "fake" {
		return nil, false
	}
	return f.resolver, true
}

func newTestRouter(searcher *fakeSearcher, resolver debrid.Resolver) *chi.Mux {
	r := chi.NewRouter()
	NewStreamHandler(searcher, fakeRegistry{resolver: resolver}, "test").Routes(r)
	return r
}

func get(t *testing.T, router *chi.Mux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestManifestRoute(t *testing.T) {
	router := newTestRouter(&fakeSearcher{}, &fakeResolver{})

	for _, path := range []string{"/manifest.json", "/fake/token/manifest.json"} {
		rec := get(t, router, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "community.olorin")
	}
}

func TestStreamRouteParsesID(t *testing.T) {
	searcher := &fakeSearcher{resp: search.StreamResponse{Streams: []search.Stream{{URL: "http://x"}}}}
	router := newTestRouter(searcher, &fakeResolver{})

	rec := get(t, router, "/fake/token/stream/movie/tt0133093.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tt0133093", searcher.gotImdb)
	assert.Contains(t, rec.Body.String(), "http://x")

	rec = get(t, router, "/fake/token/stream/series/tt0108778:5:10.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tt0108778", searcher.gotImdb)
	assert.Equal(t, 5, searcher.gotSeason)
	assert.Equal(t, 10, searcher.gotEpisode)
}

func TestStreamRouteRejectsBadInput(t *testing.T) {
	router := newTestRouter(&fakeSearcher{}, &fakeResolver{})

	assert.Equal(t, http.StatusNotFound, get(t, router, "/nope/token/stream/movie/tt1.json").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/fake/token/stream/music/tt1.json").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/fake/token/stream/series/tt1:5.json").Code)
}

func TestDeferredLinkRedirects(t *testing.T) {
	resolver := &fakeResolver{link: &debrid.StreamLink{URL: "http://cdn/direct.mkv"}}
	router := newTestRouter(&fakeSearcher{}, resolver)

	rec := get(t, router, "/fake/token/"+testHash+"/2")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://cdn/direct.mkv", rec.Header().Get("Location"))
}

func TestDeferredLinkWithoutResult(t *testing.T) {
	router := newTestRouter(&fakeSearcher{}, &fakeResolver{})

	assert.Equal(t, http.StatusNotFound, get(t, router, "/fake/token/"+testHash+"/2").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/fake/token/nothash40/2").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/fake/token/"+testHash+"/two").Code)
}

func TestParseStreamID(t *testing.T) {
	tests := []struct {
		id      string
		imdb    string
		season  int
		episode int
		ok      bool
	}{
		{id: "tt0133093", imdb: "tt0133093", ok: true},
		{id: "tt0108778:5:10", imdb: "tt0108778", season: 5, episode: 10, ok: true},
		{id: "tt1:5", ok: false},
		{id: "tt1:0:10", ok: false},
		{id: "tt1:x:10", ok: false},
		{id: "", ok: false},
	}

	for _, tt := range tests {
		imdb, season, episode, ok := parseStreamID(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.imdb, imdb, tt.id)
		assert.Equal(t, tt.season, season, tt.id)
		assert.Equal(t, tt.episode, episode, tt.id)
	}
}
