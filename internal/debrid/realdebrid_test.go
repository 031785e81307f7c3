// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulendur/olorin/internal/cache"
)

func availabilityBody(hash string, sets ...map[string]string) string {
	var rd []string
	for _, set := range sets {
		var files []string
		for id, name := range set {
			files = append(files, fmt.Sprintf(`%q:{"filename":%q,"filesize":1000}`, id, name))
		}
		rd = append(rd, "{"+strings.Join(files, ",")+"}")
	}
	return fmt.Sprintf(`{%q:{"rd":[%s]}}`, strings.ToLower(hash), strings.Join(rd, ","))
}

func TestRealDebridResolveFindsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "/torrents/instantAvailability/"+strings.ToLower(testHash), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, availabilityBody(testHash,
			map[string]string{"1": "sample.txt", "2": "Friends.S05E10.mkv", "3": "Friends.S05E09.mkv"},
		))
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	rd := NewRealDebridWithURL(srv.URL, "token", store, nil)

	link, err := rd.Resolve(context.Background(), testHash, 5, 10)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "/realdebrid/token/"+testHash+"/2", link.URL)
	assert.Equal(t, "Friends.S05E10.mkv", link.Name)

	// the whole matched set is persisted for deferred resolution
	fileSet, err := cache.GetTyped[InstantFileSet](context.Background(), store, cache.InstantFileSetKey(testHash))
	require.NoError(t, err)
	require.NotNil(t, fileSet)
	assert.Equal(t, []int{1, 2, 3}, fileSet.FileIDs)

	// availability flag records "available"
	flag, err := cache.GetTyped[bool](context.Background(), store, cache.AvailabilityKey("realdebrid", testHash))
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.True(t, *flag)
}

func TestRealDebridResolveEmptyAvailability(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{%q:[]}`, strings.ToLower(testHash))
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	rd := NewRealDebridWithURL(srv.URL, "token", store, nil)

	link, err := rd.Resolve(context.Background(), testHash, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, link)

	flag, err := cache.GetTyped[bool](context.Background(), store, cache.AvailabilityKey("realdebrid", testHash))
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.False(t, *flag)

	// a second call within the flag TTL never reaches the provider
	link, err = rd.Resolve(context.Background(), testHash, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRealDebridResolveLargestVideoWithoutEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{%q:{"rd":[{"7":{"filename":"movie.mkv","filesize":5000},"8":{"filename":"bigger.iso","filesize":9000},"9":{"filename":"small.mkv","filesize":100}}]}}`,
			strings.ToLower(testHash))
	}))
	defer srv.Close()

	rd := NewRealDebridWithURL(srv.URL, "token", cache.NewMemoryStore(), nil)

	link, err := rd.Resolve(context.Background(), testHash, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, link)
	// largest video, not largest file
	assert.Equal(t, "movie.mkv", link.Name)
}

type rdFixture struct {
	infoCalls     atomic.Int32
	infoStatuses  []string
	selectedBody  string
	unrestrictURL string
}

func newRDFixtureServer(t *testing.T, fx *rdFixture) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/torrents/addMagnet":
			require.NoError(t, r.ParseForm())
			assert.Contains(t, r.PostForm.Get("magnet"), strings.ToLower(testHash))
			fmt.Fprint(w, `{"id":"torrent-1"}`)
		case strings.HasPrefix(r.URL.Path, "/torrents/selectFiles/"):
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "1,2,3", r.PostForm.Get("files"))
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/torrents/info/"):
			n := int(fx.infoCalls.Add(1)) - 1
			status := fx.infoStatuses[len(fx.infoStatuses)-1]
			if n < len(fx.infoStatuses) {
				status = fx.infoStatuses[n]
			}
			if status != "downloaded" {
				fmt.Fprintf(w, `{"id":"torrent-1","status":%q}`, status)
				return
			}
			fmt.Fprintf(w, `{"id":"torrent-1","status":"downloaded","files":%s,"links":["http://rd/link-a","http://rd/link-b"]}`, fx.selectedBody)
		case r.URL.Path == "/unrestrict/link":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, fx.unrestrictURL, r.PostForm.Get("link"))
			fmt.Fprint(w, `{"download":"http://rd/direct.mkv","filename":"Friends.S05E10.mkv","filesize":1000}`)
		case strings.HasPrefix(r.URL.Path, "/torrents/delete/"):
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
}

func seedFileSet(t *testing.T, store cache.Store) {
	t.Helper()
	require.NoError(t, cache.SetTyped(context.Background(), store, cache.InstantFileSetKey(testHash),
		InstantFileSet{InfoHash: testHash, FileIDs: []int{1, 2, 3}}, cache.TTLInstantFileSet))
}

func TestResolveDeferredHappyPath(t *testing.T) {
	fx := &rdFixture{
		infoStatuses: []string{"queued", "downloaded"},
		// file 2 is the second selected file, so it maps to the second link
		selectedBody:  `[{"id":1,"path":"a.txt","bytes":10,"selected":1},{"id":2,"path":"Friends.S05E10.mkv","bytes":1000,"selected":1},{"id":4,"path":"junk.nfo","bytes":1,"selected":0}]`,
		unrestrictURL: "http://rd/link-b",
	}
	srv := newRDFixtureServer(t, fx)
	defer srv.Close()

	store := cache.NewMemoryStore()
	seedFileSet(t, store)
	rd := NewRealDebridWithURL(srv.URL, "token", store, nil)

	link, err := rd.ResolveDeferred(context.Background(), testHash, 2)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "http://rd/direct.mkv", link.URL)
	assert.Equal(t, "Friends.S05E10.mkv", link.Name)
	assert.Equal(t, int32(2), fx.infoCalls.Load())

	// resolved link is cached per token; replay makes no provider calls
	srv.Close()
	again, err := rd.ResolveDeferred(context.Background(), testHash, 2)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, link.URL, again.URL)
}

func TestResolveDeferredMissingFileSetIsTerminal(t *testing.T) {
	srv := newRDFixtureServer(t, &rdFixture{infoStatuses: []string{"downloaded"}})
	defer srv.Close()

	rd := NewRealDebridWithURL(srv.URL, "token", cache.NewMemoryStore(), nil)

	link, err := rd.ResolveDeferred(context.Background(), testHash, 2)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestResolveDeferredPollingGivesUpAfterFiveAttempts(t *testing.T) {
	fx := &rdFixture{infoStatuses: []string{"queued"}}
	srv := newRDFixtureServer(t, fx)
	defer srv.Close()

	store := cache.NewMemoryStore()
	seedFileSet(t, store)
	rd := NewRealDebridWithURL(srv.URL, "token", store, nil)

	link, err := rd.ResolveDeferred(context.Background(), testHash, 2)
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, int32(rdPollAttempts), fx.infoCalls.Load())
}
