// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aulendur/olorin/internal/api"
	"github.com/aulendur/olorin/internal/buildinfo"
	"github.com/aulendur/olorin/internal/cache"
	"github.com/aulendur/olorin/internal/config"
	"github.com/aulendur/olorin/internal/debrid"
	"github.com/aulendur/olorin/internal/feed"
	"github.com/aulendur/olorin/internal/indexer"
	"github.com/aulendur/olorin/internal/ingest"
	"github.com/aulendur/olorin/internal/metadata"
	"github.com/aulendur/olorin/internal/metrics"
	"github.com/aulendur/olorin/internal/search"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "olorin",
		Short: "Debrid-backed stream aggregator for torrent indexers",
		Long: `olorin - searches torrent indexers for a title, resolves candidates
through a debrid provider and serves ranked stream lists to catalog clients.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunIngestCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/olorin/). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof endpoints under /debug")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunIngestCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion consumer without the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return errors.Wrap(err, "failed to initialize configuration")
			}
			cfg.ApplyLogConfig()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := cache.NewRedisStore(ctx, cfg.Config.RedisAddr, cfg.Config.RedisPassword, cfg.Config.RedisDB)
			if err != nil {
				return err
			}
			defer store.Close()

			metricsManager := metrics.NewManager()
			consumer := ingest.NewConsumer(store, feed.NewRedisFeed(store.Client()), metricsManager,
				cfg.Config.IngestWorkers, cfg.Config.IngestQueueDepth)

			log.Info().Str("version", buildinfo.Version).Msg("Starting ingestion consumer")
			return consumer.Run(ctx)
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of olorin",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/olorin/config.toml
- Windows: %APPDATA%\olorin\config.toml

You can specify either a directory path or a direct file path:
- Directory: olorin generate-config --config-dir /path/to/config/
- File: olorin generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				defaultDir := config.GetDefaultConfigDir()
				configPath = filepath.Join(defaultDir, "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	configDir string
	logPath   string
	pprofFlag bool
}

func NewApplication(configDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	// Initialize configuration
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.logPath != "" {
		os.Setenv("OLORIN__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}
	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting olorin")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := cache.NewRedisStore(startupCtx, cfg.Config.RedisAddr, cfg.Config.RedisPassword, cfg.Config.RedisDB)
	startupCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer store.Close()

	metricsManager := metrics.NewManager()

	bus := feed.NewRedisFeed(store.Client())
	indexers := indexer.BuildRegistry(cfg.Config, store, bus, metricsManager)
	meta := metadata.NewClient(cfg.Config.CinemetaURL, store, metricsManager)
	searchService := search.NewService(meta, indexers, store, metricsManager,
		cfg.Config.MaxResults, cfg.Config.ResolverWorkers)
	resolvers := debrid.NewRegistry(store, metricsManager)

	// Run the consumer in-process so published search results feed the
	// ranked cache without a separate deployment
	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	defer ingestCancel()
	ingestDone := make(chan struct{})
	if cfg.Config.IngestEnabled {
		consumer := ingest.NewConsumer(store, bus, metricsManager,
			cfg.Config.IngestWorkers, cfg.Config.IngestQueueDepth)
		go func() {
			defer close(ingestDone)
			if err := consumer.Run(ingestCtx); err != nil {
				log.Error().Err(err).Msg("Ingestion consumer stopped")
			}
		}()
	} else {
		close(ingestDone)
	}

	httpServer := api.NewServer(&api.Dependencies{
		Config:        cfg,
		Version:       buildinfo.Version,
		SearchService: searchService,
		Resolvers:     resolvers,
		Metrics:       metricsManager,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		os.Exit(1)
	}

	ingestCancel()
	select {
	case <-ingestDone:
	case <-ctx.Done():
	}
}
