// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	PprofEnabled   bool `toml:"pprofEnabled" mapstructure:"pprofEnabled"`

	RedisAddr     string `toml:"redisAddr" mapstructure:"redisAddr"`
	RedisPassword string `toml:"redisPassword" mapstructure:"redisPassword"`
	RedisDB       int    `toml:"redisDb" mapstructure:"redisDb"`

	CinemetaURL string `toml:"cinemetaUrl" mapstructure:"cinemetaUrl"`

	EztvURL string `toml:"eztvUrl" mapstructure:"eztvUrl"`

	TorznabURL      string   `toml:"torznabUrl" mapstructure:"torznabUrl"`
	TorznabAPIKey   string   `toml:"torznabApiKey" mapstructure:"torznabApiKey"`
	TorznabIndexers []string `toml:"torznabIndexers" mapstructure:"torznabIndexers"`
	TorznabTimeout  int      `toml:"torznabTimeout" mapstructure:"torznabTimeout"`

	MaxResults      int `toml:"maxResults" mapstructure:"maxResults"`
	ResolverWorkers int `toml:"resolverWorkers" mapstructure:"resolverWorkers"`

	IngestEnabled    bool `toml:"ingestEnabled" mapstructure:"ingestEnabled"`
	IngestWorkers    int  `toml:"ingestWorkers" mapstructure:"ingestWorkers"`
	IngestQueueDepth int  `toml:"ingestQueueDepth" mapstructure:"ingestQueueDepth"`
}
