// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateAgents(cfg, errs)
	v.validateSessions(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)
	v.validateModels(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.Version == "" {
		errs.Add("version", "is required")
	}
	if cfg.Project.Name == "" {
		errs.Add("project.name", "is required")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			errs.Add("server.port", fmt.Sprintf("must be between 0 and 65535, got %d", cfg.Server.Port))
		}
	}
}

func (v *Validator) validateAgents(cfg *Config, errs *ValidationError) {
	if cfg.Agents.ManifestDir == "" {
		errs.Add("agents.manifest_dir", "is required")
	}
}

func (v *Validator) validateSessions(cfg *Config, errs *ValidationError) {
	if cfg.Sessions.SubagentCap < 0 {
		errs.Add("sessions.subagent_cap", "must not be negative")
	}
	if cfg.Sessions.QueueBound < 0 {
		errs.Add("sessions.queue_bound", "must not be negative")
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
		}
	}
	if cfg.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[cfg.Logging.Format] {
			errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be one of: json, text", cfg.Logging.Format))
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	if cfg.Events.History.MaxAge != "" {
		if _, err := time.ParseDuration(cfg.Events.History.MaxAge); err != nil {
			errs.Add("events.history.max_age", fmt.Sprintf("invalid duration: %v", err))
		}
	}
	if cfg.Cron.CheckInterval != "" {
		if _, err := time.ParseDuration(cfg.Cron.CheckInterval); err != nil {
			errs.Add("cron.check_interval", fmt.Sprintf("invalid duration: %v", err))
		}
	}
}

func (v *Validator) validateModels(cfg *Config, errs *ValidationError) {
	seen := make(map[string]bool)
	for i, m := range cfg.Models {
		if m.Alias == "" {
			errs.Add(fmt.Sprintf("models[%d].alias", i), "is required")
			continue
		}
		if seen[m.Alias] {
			errs.Add(fmt.Sprintf("models[%d].alias", i), fmt.Sprintf("duplicate alias '%s'", m.Alias))
		}
		seen[m.Alias] = true
		if m.Model == "" {
			errs.Add(fmt.Sprintf("models[%d].model", i), "is required")
		}
	}
}
