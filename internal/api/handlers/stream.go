// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package handlers implements the HTTP surface: the catalog manifest, the
// stream search route and the deferred link redirect.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/search"
	"github.com/aulendur/olorin/internal/torrent"
)

// Searcher runs one stream search.
type Searcher interface {
	Search(ctx context.Context, resolver debrid.Resolver, category torrent.Category, imdbID string, season, episode int) search.StreamResponse
}

// ResolverRegistry looks up a debrid provider by id or short name.
type ResolverRegistry interface {
	Get(providerID, token string) (debrid.Resolver, bool)
}

type StreamHandler struct {
	search    Searcher
	resolvers ResolverRegistry
	version   string
	log       zerolog.Logger
}

func NewStreamHandler(searcher Searcher, resolvers ResolverRegistry, version string) *StreamHandler {
	return &StreamHandler{
		search:    searcher,
		resolvers: resolvers,
		version:   version,
		log:       log.Logger.With().Str("module", "api").Logger(),
	}
}

func (h *StreamHandler) Routes(r chi.Router) {
	r.Get("/manifest.json", h.Manifest)
	r.Route("/{provider}/{token}", func(r chi.Router) {
		r.Get("/manifest.json", h.Manifest)
		r.Get("/stream/{category}/{id}.json", h.Stream)
		r.Get("/{infoHash}/{fileID}", h.DeferredLink)
	})
}

type manifest struct {
	ID          string   `json:"id"`
	Version     string   `json:"version"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Resources   []string `json:"resources"`
	Types       []string `json:"types"`
	IDPrefixes  []string `json:"idPrefixes"`
	Catalogs    []string `json:"catalogs"`
}

func (h *StreamHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manifest{
		ID:          "community.olorin",
		Version:     h.version,
		Name:        "Olorin",
		Description: "Debrid-backed streams from torrent indexers",
		Resources:   []string{"stream"},
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"tt"},
		Catalogs:    []string{},
	})
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	resolver, ok := h.resolvers.Get(chi.URLParam(r, "provider"), chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown debrid provider")
		return
	}

	category, ok := torrent.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}

	imdbID, season, episode, ok := parseStreamID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed stream id")
		return
	}

	resp := h.search.Search(r.Context(), resolver, category, imdbID, season, episode)
	writeJSON(w, http.StatusOK, resp)
}

// DeferredLink exchanges a deferred reference handed out at search time for
// a playable URL and redirects the player to it.
func (h *StreamHandler) DeferredLink(w http.ResponseWriter, r *http.Request) {
	resolver, ok := h.resolvers.Get(chi.URLParam(r, "provider"), chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown debrid provider")
		return
	}
	deferred, ok := resolver.(debrid.DeferredResolver)
	if !ok {
		writeError(w, http.StatusNotFound, "provider has no deferred links")
		return
	}

	infoHash, ok := torrent.NormalizeInfoHash(chi.URLParam(r, "infoHash"))
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed info hash")
		return
	}
	fileID, err := strconv.Atoi(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed file id")
		return
	}

	link, err := deferred.ResolveDeferred(r.Context(), infoHash, fileID)
	if err != nil {
		h.log.Error().Err(err).Str("info_hash", infoHash).Msg("deferred resolution failed")
		writeError(w, http.StatusInternalServerError, "link resolution failed")
		return
	}
	if link == nil {
		writeError(w, http.StatusNotFound, "no link available")
		return
	}

	http.Redirect(w, r, link.URL, http.StatusFound)
}

// parseStreamID splits a catalog id: "tt0108778" for a movie,
// "tt0108778:5:10" for an episode.
func parseStreamID(id string) (imdbID string, season, episode int, ok bool) {
	parts := strings.Split(id, ":")
	if parts[0] == "" {
		return "", 0, 0, false
	}
	imdbID = parts[0]
	if len(parts) == 1 {
		return imdbID, 0, 0, true
	}
	if len(parts) != 3 {
		return "", 0, 0, false
	}

	var err error
	if season, err = strconv.Atoi(parts[1]); err != nil || season <= 0 {
		return "", 0, 0, false
	}
	if episode, err = strconv.Atoi(parts[2]); err != nil || episode <= 0 {
		return "", 0, 0, false
	}
	return imdbID, season, episode, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
