// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "claude.yaml", `
name: claude
command: claude
args: ["--output-format", "stream-json"]
inputMode: jsonl
resume:
  flag: "--resume"
  sessionArg: "{sessionId}"
model:
  flag: "--model"
  default: "sonnet"
`)
	writeManifest(t, dir, "pi.yaml", `
name: pi
command: pi
inputMode: jsonl
keepStdinOpen: true
`)

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))

	claude, ok := reg.Get("claude")
	require.True(t, ok)
	assert.Equal(t, "claude", claude.Command)
	assert.Equal(t, InputModeJSONL, claude.InputMode)
	assert.Equal(t, "--resume", claude.Resume.Flag)
	assert.False(t, claude.KeepStdinOpen)

	pi, ok := reg.Get("pi")
	require.True(t, ok)
	assert.True(t, pi.KeepStdinOpen)

	assert.ElementsMatch(t, []string{"claude", "pi"}, reg.Names())
}

func TestRegistry_LoadDir_MissingCommand(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken.yaml", `name: broken`)

	reg := NewRegistry()
	err := reg.LoadDir(dir)
	require.Error(t, err)
}

func TestRegistry_LoadDir_DefaultsInputModeToJSONL(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "codex.yaml", `
name: codex
command: codex
`)

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))
	codex, ok := reg.Get("codex")
	require.True(t, ok)
	assert.Equal(t, InputModeJSONL, codex.InputMode)
}

func TestRegistry_LoadDir_IgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "claude.yaml", "name: claude\ncommand: claude\n")
	writeManifest(t, dir, "README.md", "not a manifest")

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))
	assert.Equal(t, []string{"claude"}, reg.Names())
}
