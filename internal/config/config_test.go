// Copyright (c) 2025, the olorin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirResolution(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		setupFile      bool
		fileIsDir      bool
		expectedSuffix string
	}{
		{
			name:           "toml_file_extension",
			input:          "/path/to/custom.toml",
			expectedSuffix: "custom.toml",
		},
		{
			name:           "TOML_file_extension_uppercase",
			input:          "/path/to/CONFIG.TOML",
			expectedSuffix: "CONFIG.TOML",
		},
		{
			name:           "directory_path",
			input:          "/path/to/config",
			expectedSuffix: "config.toml",
		},
		{
			name:           "existing_file_without_toml",
			input:          "/path/to/configfile",
			setupFile:      true,
			fileIsDir:      false,
			expectedSuffix: "configfile",
		},
		{
			name:           "existing_directory",
			input:          "/path/to/configdir",
			setupFile:      true,
			fileIsDir:      true,
			expectedSuffix: "config.toml",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputPath := filepath.Join(tmpDir, filepath.Base(tt.input))

			if tt.setupFile {
				if tt.fileIsDir {
					err := os.MkdirAll(inputPath, 0o755)
					require.NoError(t, err)
				} else {
					err := os.WriteFile(inputPath, []byte("test"), 0o644)
					require.NoError(t, err)
				}
			}

			c := &AppConfig{}
			result := c.resolveConfigPath(inputPath)
			assert.True(t, strings.HasSuffix(result, tt.expectedSuffix),
				"Expected result %s to end with %s", result, tt.expectedSuffix)
		})
	}
}

func TestNewLoadsConfigFromFileOrDirectory(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, tmpDir string) (inputPath string, expectedHost string, expectedPort int)
	}{
		{
			name: "config_file_path",
			prepare: func(t *testing.T, tmpDir string) (string, string, int) {
				configPath := filepath.Join(tmpDir, "myconfig.toml")
				content := "host = \"localhost\"\nport = 8080\n"
				require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
				return configPath, "localhost", 8080
			},
		},
		{
			name: "config_directory_path",
			prepare: func(t *testing.T, tmpDir string) (string, string, int) {
				configDir := filepath.Join(tmpDir, "configdir")
				require.NoError(t, os.MkdirAll(configDir, 0o755))
				content := "host = \"0.0.0.0\"\nport = 9090\n"
				require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
				return configDir, "0.0.0.0", 9090
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputPath, expectedHost, expectedPort := tt.prepare(t, tmpDir)

			cfg, err := New(inputPath)
			require.NoError(t, err)

			assert.Equal(t, expectedHost, cfg.Config.Host)
			assert.Equal(t, expectedPort, cfg.Config.Port)
		})
	}
}

func TestDefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("host = \"localhost\"\n"), 0o644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Config.MaxResults)
	assert.Equal(t, 5, cfg.Config.ResolverWorkers)
	assert.Equal(t, 100, cfg.Config.IngestQueueDepth)
	assert.Equal(t, 1, cfg.Config.IngestWorkers)
	assert.Equal(t, "localhost:6379", cfg.Config.RedisAddr)
	assert.Equal(t, "https://v3-cinemeta.strem.io", cfg.Config.CinemetaURL)
	assert.Equal(t, 10, cfg.Config.TorznabTimeout)
	assert.False(t, cfg.Config.IngestEnabled)
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("port = 8080\nmaxResults = 6\n"), 0o644))

	t.Setenv(envPrefix+"PORT", "9999")
	t.Setenv(envPrefix+"REDIS_ADDR", "redis:6380")
	t.Setenv(envPrefix+"LOG_LEVEL", "DEBUG")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Config.Port)
	assert.Equal(t, "redis:6380", cfg.Config.RedisAddr)
	assert.Equal(t, "DEBUG", cfg.Config.LogLevel)
	assert.Equal(t, 6, cfg.Config.MaxResults)
}

func TestBindOrReadFromFile(t *testing.T) {
	tmpKeyFile := func(t *testing.T, tmpDir string) string {
		keyPath := filepath.Join(tmpDir, "key-file.txt")
		require.NoError(t, os.WriteFile(keyPath, []byte("key-from-file\n"), 0o644))
		return keyPath
	}

	tests := []struct {
		name            string
		envVarValue     string
		envVarFileValue func(t *testing.T, tmpDir string) string
		expectedValue   string
	}{
		{
			name:            "only_file_env_var",
			envVarFileValue: tmpKeyFile,
			expectedValue:   "key-from-file",
		},
		{
			name:          "only_plain_env_var",
			envVarValue:   "key-not-from-file",
			expectedValue: "key-not-from-file",
		},
		{
			name:            "file_wins_over_plain",
			envVarValue:     "key-not-from-file",
			envVarFileValue: tmpKeyFile,
			expectedValue:   "key-from-file",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			envVar := envPrefix + "REDIS_PASSWORD"

			if tt.envVarValue != "" {
				t.Setenv(envVar, tt.envVarValue)
			}

			if tt.envVarFileValue != nil {
				t.Setenv(envVar+"_FILE", tt.envVarFileValue(t, t.TempDir()))
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.toml")
			require.NoError(t, os.WriteFile(configPath, []byte("host = \"localhost\"\n"), 0o644))

			cfg, err := New(configPath)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, cfg.Config.RedisPassword)
		})
	}
}

func TestWriteDefaultConfigCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.toml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "redisAddr")
	assert.Contains(t, string(data), "logLevel")

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Config.Port)
}
