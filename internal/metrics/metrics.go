// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Manager owns the process registry and the application series.
type Manager struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	ClientDuration  *prometheus.HistogramVec
	UniqueSearches  prometheus.Counter
	IngestEvents    *prometheus.CounterVec
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "api_request_duration_seconds",
			Help: "Duration of stream search requests in seconds",
		}, []string{"type", "debrid_service", "cached", "error"}),
		ClientDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_client_request_duration_seconds",
			Help: "Duration of upstream HTTP client requests in seconds",
		}, []string{"client", "method", "status", "error"}),
		UniqueSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unique_searches",
			Help: "Unique stream search counter",
		}),
		IngestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Ingestion events by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.RequestDuration, m.ClientDuration, m.UniqueSearches, m.IngestEvents)

	log.Debug().Msg("Metrics manager initialized")

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// All observers are nil-safe so callers constructed without metrics (tests,
// metrics disabled) can record unconditionally.

func (m *Manager) ObserveRequest(mediaType, provider string, cached, failed bool, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(mediaType, provider, boolLabel(cached), boolLabel(failed)).Observe(seconds)
}

func (m *Manager) ObserveClient(client, method, status string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	m.ClientDuration.WithLabelValues(client, method, status, boolLabel(failed)).Observe(seconds)
}

func (m *Manager) CountUniqueSearch() {
	if m == nil {
		return
	}
	m.UniqueSearches.Inc()
}

func (m *Manager) CountIngest(outcome string) {
	if m == nil {
		return
	}
	m.IngestEvents.WithLabelValues(outcome).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
