// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the bridge.
package config

// Config is the root configuration structure for the bridge.
type Config struct {
	Version  string         `json:"version"`
	Project  ProjectConfig  `json:"project"`
	Server   ServerConfig   `json:"server"`
	Telegram TelegramConfig `json:"telegram"`
	Agents   AgentsConfig   `json:"agents"`
	Sessions SessionsConfig `json:"sessions"`
	Cron     CronConfig     `json:"cron"`
	Events   EventsConfig   `json:"events"`
	Logging  LoggingConfig  `json:"logging"`
	Models   []ModelAlias   `json:"models"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig configures the status API's HTTP+WS listener (spec §9).
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// TelegramConfig configures the Telegram transport (spec §6).
type TelegramConfig struct {
	Token          string  `json:"token"`
	AllowedUserIDs []int64 `json:"allowed_user_ids"`
}

// AgentsConfig configures the adapter manifest registry and default CLI
// (spec §4.1, §9).
type AgentsConfig struct {
	ManifestDir string `json:"manifest_dir"`
	DefaultCLI  string `json:"default_cli"`
	WorkDir     string `json:"work_dir"`
}

// SessionsConfig configures on-disk state paths (spec §6's file layout).
type SessionsConfig struct {
	StateDir    string `json:"state_dir"`
	SubagentCap int    `json:"subagent_cap"`
	QueueBound  int    `json:"queue_bound"`
}

// CronConfig configures the Cron Service (spec §4.4).
type CronConfig struct {
	CheckInterval string `json:"check_interval"`
}

// EventsConfig configures the in-process EventBus (spec §4.2 adaptation).
type EventsConfig struct {
	History EventsHistoryConfig `json:"history"`
}

// EventsHistoryConfig bounds the EventBus's retained history.
type EventsHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// LoggingConfig configures process-wide log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ModelAlias registers one alias -> underlying-model-name mapping for
// internal/modelalias.Table (spec §4.3.3's `/model`/`/aliases` surface).
type ModelAlias struct {
	Alias string `json:"alias"`
	Model string `json:"model"`
}
