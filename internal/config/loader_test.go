// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		version: "1.0"
		project: {
			name: "test-bridge"
			description: "A test bridge"
		}
		server: {
			port: 8090
			host: "127.0.0.1"
		}
		telegram: {
			token: "123:abc"
			allowed_user_ids: [111, 222]
		}
		agents: {
			default_cli: "claude"
			manifest_dir: "manifests"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "test-bridge", cfg.Project.Name)
	assert.Equal(t, "A test bridge", cfg.Project.Description)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{111, 222}, cfg.Telegram.AllowedUserIDs)
	assert.Equal(t, "claude", cfg.Agents.DefaultCLI)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	configContent := `{
		// This is a comment
		version: "1.0"

		# Hash comment
		project: {
			name: test-bridge
			description: '''
				Multi-line
				description
			'''
		}

		server: {
			port: 8090,
			host: 127.0.0.1,
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "test-bridge", cfg.Project.Name)
	assert.Contains(t, cfg.Project.Description, "Multi-line")
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestLoader_Load_AllSections(t *testing.T) {
	configContent := `{
		version: "1.0"

		project: { name: "full-bridge" }

		server: { port: 9000, host: "0.0.0.0" }

		telegram: {
			token: "tok"
			allowed_user_ids: [1]
		}

		agents: {
			manifest_dir: "manifests"
			default_cli: "droid"
			work_dir: "/srv/work"
		}

		sessions: {
			state_dir: ".bridge"
			subagent_cap: 6
			queue_bound: 10
		}

		cron: { check_interval: "15s" }

		events: {
			history: { max_events: 5000, max_age: "2h" }
		}

		logging: { level: "debug", format: "text" }

		models: [
			{ alias: "fast", model: "claude-haiku" }
			{ alias: "smart", model: "claude-opus" }
		]
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "tok", cfg.Telegram.Token)
	assert.Equal(t, "droid", cfg.Agents.DefaultCLI)
	assert.Equal(t, "/srv/work", cfg.Agents.WorkDir)
	assert.Equal(t, 6, cfg.Sessions.SubagentCap)
	assert.Equal(t, 10, cfg.Sessions.QueueBound)
	assert.Equal(t, "15s", cfg.Cron.CheckInterval)
	assert.Equal(t, 5000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "fast", cfg.Models[0].Alias)
	assert.Equal(t, "claude-haiku", cfg.Models[0].Model)
}

func TestLoader_Load_Defaults(t *testing.T) {
	configContent := `{
		version: "1.0"
		project: { name: "test" }
	}`

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, configContent))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "claude", cfg.Agents.DefaultCLI)
	assert.Equal(t, 4, cfg.Sessions.SubagentCap)
	assert.Equal(t, 5, cfg.Sessions.QueueBound)
	assert.Equal(t, "30s", cfg.Cron.CheckInterval)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/path/config.hjson")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	configContent := `{
		version: "1.0"
		invalid json here {{{
	}`

	loader := NewLoader()
	path := writeTestConfig(t, configContent)
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_Load_ConfigPaths(t *testing.T) {
	dir := t.TempDir()

	hjsonPath := filepath.Join(dir, "bridge.hjson")
	require.NoError(t, os.WriteFile(hjsonPath, []byte(`{version: "1.0", project: {name: "hjson"}}`), 0644))

	jsonPath := filepath.Join(dir, "bridge.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version": "1.0", "project": {"name": "json"}}`), 0644))

	loader := NewLoader()

	cfg, err := loader.Load(context.Background(), hjsonPath)
	require.NoError(t, err)
	assert.Equal(t, "hjson", cfg.Project.Name)

	cfg, err = loader.Load(context.Background(), jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Project.Name)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(dir)

	loader := NewLoader()

	_, err := loader.FindConfig()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridge.hjson"), []byte(`{}`), 0644))
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "bridge.hjson")

	os.Remove(filepath.Join(dir, "bridge.hjson"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridge.json"), []byte(`{}`), 0644))
	path, err = loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "bridge.json")
}

// Helper functions

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
