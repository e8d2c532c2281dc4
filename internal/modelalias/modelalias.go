// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package modelalias holds the baked-in, extensible model-alias table
// (spec §6): short names users type with `/model` resolved to the
// underlying provider's model id.
package modelalias

// defaultTable is seeded with the current generation's model ids per
// spec §6. A deployment may extend it at startup via Register.
var defaultTable = map[string]string{
	"opus":       "claude-opus-4-6",
	"sonnet":     "claude-sonnet-4-6",
	"haiku":      "claude-haiku-4-6",
	"codex":      "gpt-5.1-codex",
	"codex-max":  "gpt-5.1-codex-max",
	"gemini":     "gemini-3-pro",
	"gemini-flash": "gemini-3-flash",
	"pi":         "pi",
	"pi-opus":    "claude-opus-4-6",
	"pi-haiku":   "claude-haiku-4-6",
}

// Table resolves model aliases to provider model ids. Safe for
// concurrent reads; Register should only be called during startup wiring.
type Table struct {
	aliases map[string]string
}

// New returns a Table seeded with the baked-in alias set.
func New() *Table {
	t := &Table{aliases: make(map[string]string, len(defaultTable))}
	for k, v := range defaultTable {
		t.aliases[k] = v
	}
	return t
}

// Register adds or overrides an alias.
func (t *Table) Register(alias, modelID string) {
	t.aliases[alias] = modelID
}

// Names returns every registered alias, in no particular order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.aliases))
	for k := range t.aliases {
		out = append(out, k)
	}
	return out
}

// Resolve returns the provider model id for an alias, or the input
// unchanged if it is not a known alias (callers pass through
// already-concrete model ids this way).
func (t *Table) Resolve(alias string) string {
	if alias == "" {
		return ""
	}
	if id, ok := t.aliases[alias]; ok {
		return id
	}
	return alias
}
