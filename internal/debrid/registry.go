// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"sort"
	"strings"

	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/metrics"
)

// Factory builds a resolver bound to one user's API token.
type Factory func(token string) Resolver

// Registry is the closed set of providers, looked up by provider id or
// short name from the request path.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry(store cache.Store, m *metrics.Manager) *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.register(func(token string) Resolver { return NewPremiumize(token, store, m) }, "premiumize", "pm")
	r.register(func(token string) Resolver { return NewRealDebrid(token, store, m) }, "realdebrid", "rd")

	return r
}

func (r *Registry) register(factory Factory, ids ...string) {
	for _, id := range ids {
		r.factories[id] = factory
	}
}

// Get builds a resolver for the provider id, or false when the id is
// unknown.
func (r *Registry) Get(providerID, token string) (Resolver, bool) {
	factory, ok := r.factories[strings.ToLower(providerID)]
	if !ok {
		return nil, false
	}
	return factory(token), true
}

// Providers lists the known provider ids.
func (r *Registry) Providers() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
