// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package resume

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetTokenPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".state", "resume-tokens.json")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetToken("123", "claude", "sess-abc"))

	tok, ok := s.Token("123", "claude")
	require.True(t, ok)
	assert.Equal(t, "sess-abc", tok.SessionID)
	assert.Equal(t, "claude", tok.Engine)

	reopened, err := Open(path)
	require.NoError(t, err)
	tok2, ok := reopened.Token("123", "claude")
	require.True(t, ok)
	assert.Equal(t, tok, tok2)
}

func TestStore_TokenMissingIsNotOK(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "resume-tokens.json"))
	require.NoError(t, err)
	_, ok := s.Token("999", "claude")
	assert.False(t, ok)
}

func TestStore_ClearToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume-tokens.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetToken("123", "claude", "sess-abc"))
	require.NoError(t, s.ClearToken("123", "claude"))
	_, ok := s.Token("123", "claude")
	assert.False(t, ok)
}

func TestStore_SettingsDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "resume-tokens.json"))
	require.NoError(t, err)
	got := s.Settings("123")
	assert.Equal(t, Settings{Streaming: false, Verbose: false, Model: ""}, got)
}

func TestStore_UpdateSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume-tokens.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.UpdateSettings("123", func(set *Settings) { set.Streaming = true }))
	require.NoError(t, s.UpdateSettings("123", func(set *Settings) { set.Model = "opus" }))

	got := s.Settings("123")
	assert.True(t, got.Streaming)
	assert.Equal(t, "opus", got.Model)
}

func TestStore_ActiveCLI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume-tokens.json")
	s, err := Open(path)
	require.NoError(t, err)

	_, ok := s.ActiveCLI("123")
	assert.False(t, ok)

	require.NoError(t, s.SetActiveCLI("123", "droid"))
	cli, ok := s.ActiveCLI("123")
	require.True(t, ok)
	assert.Equal(t, "droid", cli)
}

func TestStore_OnDiskLayoutMatchesSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume-tokens.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetToken("123", "claude", "sess-abc"))
	require.NoError(t, s.SetActiveCLI("123", "claude"))
	require.NoError(t, s.UpdateSettings("123", func(set *Settings) { set.Verbose = true }))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Contains(t, onDisk, "version")
	assert.Contains(t, onDisk, "tokens")
	assert.Contains(t, onDisk, "activeCli")
	assert.Contains(t, onDisk, "chatSettings")

	var tokens map[string]Token
	require.NoError(t, json.Unmarshal(onDisk["tokens"], &tokens))
	assert.Equal(t, "sess-abc", tokens["123:claude"].SessionID)
}
