// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridgecmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_UnknownTextFallsThrough(t *testing.T) {
	a := Parse("just chatting")
	assert.False(t, a.Handled)
}

func TestParse_UnknownSlashCommandFallsThrough(t *testing.T) {
	a := Parse("/totally-made-up")
	assert.False(t, a.Handled)
}

func TestParse_RecognizedCommandsWithArgs(t *testing.T) {
	cases := []struct {
		text string
		verb Verb
		args []string
		raw  string
	}{
		{"/use droid", VerbUse, []string{"droid"}, "droid"},
		{"/model opus", VerbModel, []string{"opus"}, "opus"},
		{"/new", VerbNew, nil, ""},
		{"/stop", VerbStop, nil, ""},
		{"/interrupt", VerbInterrupt, nil, ""},
		{"/restart", VerbRestart, nil, ""},
		{"/status", VerbStatus, nil, ""},
		{"/stream on", VerbStream, []string{"on"}, "on"},
		{"/verbose off", VerbVerbose, []string{"off"}, "off"},
	}
	for _, tc := range cases {
		a := Parse(tc.text)
		assert.True(t, a.Handled, tc.text)
		assert.Equal(t, tc.verb, a.Verb, tc.text)
		assert.Equal(t, tc.args, a.Args, tc.text)
		assert.Equal(t, tc.raw, a.Raw, tc.text)
	}
}

func TestParse_IsCaseInsensitiveOnVerb(t *testing.T) {
	a := Parse("/STOP")
	assert.True(t, a.Handled)
	assert.Equal(t, VerbStop, a.Verb)
}

func TestParseToggle(t *testing.T) {
	assert.Equal(t, ToggleOn, ParseToggle("on"))
	assert.Equal(t, ToggleOff, ParseToggle("OFF"))
	assert.Equal(t, ToggleReport, ParseToggle(""))
	assert.Equal(t, ToggleReport, ParseToggle("garbage"))
}

func TestParseSubagents(t *testing.T) {
	sub, id := ParseSubagents(nil)
	assert.Equal(t, SubagentsList, sub)
	assert.Empty(t, id)

	sub, id = ParseSubagents([]string{"list"})
	assert.Equal(t, SubagentsList, sub)

	sub, id = ParseSubagents([]string{"stop", "run-123"})
	assert.Equal(t, SubagentsStop, sub)
	assert.Equal(t, "run-123", id)

	sub, _ = ParseSubagents([]string{"stop", "all"})
	assert.Equal(t, SubagentsStopAll, sub)

	sub, id = ParseSubagents([]string{"log", "run-123"})
	assert.Equal(t, SubagentsLog, sub)
	assert.Equal(t, "run-123", id)

	sub, _ = ParseSubagents([]string{"bogus"})
	assert.Equal(t, SubagentsUnknown, sub)
}

func TestParseCron(t *testing.T) {
	assert.Equal(t, CronAction{Sub: CronList}, ParseCron(""))
	assert.Equal(t, CronAction{Sub: CronList}, ParseCron("list"))

	got := ParseCron(`add "nightly build" every 24h`)
	assert.Equal(t, CronAdd, got.Sub)
	assert.Equal(t, "nightly build", got.Name)
	assert.Equal(t, "every 24h", got.Schedule)

	assert.Equal(t, CronAction{Sub: CronRemove, ID: "job-1"}, ParseCron("remove job-1"))
	assert.Equal(t, CronAction{Sub: CronRun, ID: "job-1"}, ParseCron("run job-1"))
	assert.Equal(t, CronAction{Sub: CronEnable, ID: "job-1"}, ParseCron("enable job-1"))
	assert.Equal(t, CronAction{Sub: CronDisable, ID: "job-1"}, ParseCron("disable job-1"))
	assert.Equal(t, CronAction{Sub: CronUnknown}, ParseCron("bogus"))
}
