// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads and holds Adapter Manifests: the static, per-CLI
// descriptors (invocation command, base arguments, resume/model flag
// syntax) that an AdapterDriver composes an argv from. Manifests are YAML
// files, one per CLI, loaded once at startup and optionally hot-reloaded
// from a watched directory.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// InputMode says how a CLI wants its turns delivered.
type InputMode string

const (
	InputModeArg   InputMode = "arg"
	InputModeJSONL InputMode = "jsonl"
)

// Resume describes a CLI's resume-flag syntax.
type Resume struct {
	Flag       string `yaml:"flag"`
	SessionArg string `yaml:"sessionArg"`
}

// Model describes a CLI's model-flag syntax.
type Model struct {
	Flag    string `yaml:"flag"`
	Default string `yaml:"default"`
}

// Manifest is the immutable, per-CLI descriptor loaded from disk.
type Manifest struct {
	Name           string    `yaml:"name"`
	Command        string    `yaml:"command"`
	Args           []string  `yaml:"args"`
	InputMode      InputMode `yaml:"inputMode"`
	Resume         *Resume   `yaml:"resume,omitempty"`
	Model          *Model    `yaml:"model,omitempty"`
	WorkingDirFlag string    `yaml:"workingDirFlag,omitempty"`
	// KeepStdinOpen is true only for adapters needing the in-loop tool
	// protocol (currently Pi): the Agent Process must not close stdin
	// after the turn, because tool-result feedback is written to it.
	KeepStdinOpen bool `yaml:"keepStdinOpen,omitempty"`
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if m.Command == "" {
		return fmt.Errorf("manifest %s: command is required", m.Name)
	}
	switch m.InputMode {
	case InputModeArg, InputModeJSONL:
	case "":
		m.InputMode = InputModeJSONL
	default:
		return fmt.Errorf("manifest %s: unknown inputMode %q", m.Name, m.InputMode)
	}
	return nil
}

// Registry holds loaded manifests keyed by CLI name.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	dir       string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{manifests: make(map[string]*Manifest)}
}

// LoadDir reads every *.yaml/*.yml file in dir as a Manifest and replaces
// the registry's contents atomically.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read manifest dir: %w", err)
	}

	loaded := make(map[string]*Manifest)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read manifest %s: %w", path, err)
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse manifest %s: %w", path, err)
		}
		if err := m.validate(); err != nil {
			return err
		}
		loaded[m.Name] = &m
	}

	r.mu.Lock()
	r.manifests = loaded
	r.dir = dir
	r.mu.Unlock()
	return nil
}

// Get returns the manifest for a CLI name, if loaded.
func (r *Registry) Get(name string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[name]
	return m, ok
}

// Names returns every loaded CLI name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.manifests))
	for n := range r.manifests {
		names = append(names, n)
	}
	return names
}

// Dir returns the directory this registry was last loaded from.
func (r *Registry) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}
