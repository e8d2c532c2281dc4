// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridgecmd implements the Command Dispatcher (spec §4.7): a
// pure text-to-typed-action parser for the bridge's built-in slash
// commands. Grounded on internal/workflow/parser.go's line-oriented,
// prefix-driven parsing style, generalized from YAML workflow steps to
// chat slash commands.
package bridgecmd

import "strings"

// Verb names a recognized built-in command (spec §4.7).
type Verb string

const (
	VerbUse       Verb = "use"
	VerbModel     Verb = "model"
	VerbNew       Verb = "new"
	VerbStop      Verb = "stop"
	VerbInterrupt Verb = "interrupt"
	VerbRestart   Verb = "restart"
	VerbStatus    Verb = "status"
	VerbStream    Verb = "stream"
	VerbVerbose   Verb = "verbose"
	VerbSpawn     Verb = "spawn"
	VerbSubagents Verb = "subagents"
	VerbCron      Verb = "cron"
	VerbConcepts  Verb = "concepts"
	VerbRelated   Verb = "related"
	VerbFile      Verb = "file"
	VerbAliases   Verb = "aliases"
)

// Action is a parsed command: Handled is false when the input did not
// match any recognized prefix, in which case it falls through to the
// model unchanged (spec §4.7).
type Action struct {
	Handled bool
	Verb    Verb
	Args    []string // remaining whitespace-split tokens after the verb
	Raw     string    // the full argument string after the verb, unsplit
}

// on/off toggles accept an explicit argument or, with none, are read by
// the caller as "report current state" (spec §4.7: "/stream [on|off]").
const (
	ToggleOn     = "on"
	ToggleOff    = "off"
	ToggleReport = ""
)

var verbTable = map[string]Verb{
	"/use":       VerbUse,
	"/model":     VerbModel,
	"/new":       VerbNew,
	"/stop":      VerbStop,
	"/interrupt": VerbInterrupt,
	"/restart":   VerbRestart,
	"/status":    VerbStatus,
	"/stream":    VerbStream,
	"/verbose":   VerbVerbose,
	"/spawn":     VerbSpawn,
	"/subagents": VerbSubagents,
	"/cron":      VerbCron,
	"/concepts":  VerbConcepts,
	"/related":   VerbRelated,
	"/file":      VerbFile,
	"/aliases":   VerbAliases,
}

// Parse turns raw chat text into an Action. Only text beginning with a
// recognized "/<verb>" prefix (followed by end-of-string or whitespace)
// is handled; everything else returns Handled: false (spec §4.7).
func Parse(text string) Action {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Action{Handled: false}
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return Action{Handled: false}
	}

	verb, ok := verbTable[strings.ToLower(fields[0])]
	if !ok {
		return Action{Handled: false}
	}

	raw := strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
	args := fields[1:]
	if len(args) == 0 {
		args = nil
	}
	return Action{Handled: true, Verb: verb, Args: args, Raw: raw}
}

// ParseToggle interprets an on/off toggle command's Raw argument (spec
// §4.7's "/stream [on|off]" / "/verbose [on|off]"), defaulting to
// ToggleReport when no argument was given.
func ParseToggle(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ToggleOn:
		return ToggleOn
	case ToggleOff:
		return ToggleOff
	default:
		return ToggleReport
	}
}

// SubagentsSubverb names a /subagents sub-action (spec §4.7).
type SubagentsSubverb string

const (
	SubagentsList     SubagentsSubverb = "list"
	SubagentsStop     SubagentsSubverb = "stop"
	SubagentsStopAll  SubagentsSubverb = "stop_all"
	SubagentsLog      SubagentsSubverb = "log"
	SubagentsUnknown  SubagentsSubverb = ""
)

// ParseSubagents interprets a VerbSubagents Action's Args (spec §4.7:
// "/subagents [list|stop <id>|stop all|log <id>]").
func ParseSubagents(args []string) (sub SubagentsSubverb, runID string) {
	if len(args) == 0 {
		return SubagentsList, ""
	}
	switch strings.ToLower(args[0]) {
	case "list":
		return SubagentsList, ""
	case "stop":
		if len(args) >= 2 && strings.EqualFold(args[1], "all") {
			return SubagentsStopAll, ""
		}
		if len(args) >= 2 {
			return SubagentsStop, args[1]
		}
		return SubagentsUnknown, ""
	case "log":
		if len(args) >= 2 {
			return SubagentsLog, args[1]
		}
		return SubagentsUnknown, ""
	default:
		return SubagentsUnknown, ""
	}
}

// CronSubverb names a /cron sub-action (spec §4.7).
type CronSubverb string

const (
	CronList    CronSubverb = "list"
	CronAdd     CronSubverb = "add"
	CronRemove  CronSubverb = "remove"
	CronRun     CronSubverb = "run"
	CronEnable  CronSubverb = "enable"
	CronDisable CronSubverb = "disable"
	CronUnknown CronSubverb = ""
)

// CronAction is the parsed result of a VerbCron Action's Raw text (spec
// §4.7: `/cron list | add "<name>" <schedule> | remove <id> | run <id> |
// enable|disable <id>`).
type CronAction struct {
	Sub      CronSubverb
	ID       string
	Name     string
	Schedule string
}

// ParseCron interprets a VerbCron Action's Raw text.
func ParseCron(raw string) CronAction {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "list") {
		return CronAction{Sub: CronList}
	}

	fields := strings.Fields(raw)
	switch strings.ToLower(fields[0]) {
	case "add":
		name, schedule := parseQuotedNameAndRest(strings.TrimSpace(strings.TrimPrefix(raw, fields[0])))
		return CronAction{Sub: CronAdd, Name: name, Schedule: schedule}
	case "remove":
		if len(fields) >= 2 {
			return CronAction{Sub: CronRemove, ID: fields[1]}
		}
	case "run":
		if len(fields) >= 2 {
			return CronAction{Sub: CronRun, ID: fields[1]}
		}
	case "enable":
		if len(fields) >= 2 {
			return CronAction{Sub: CronEnable, ID: fields[1]}
		}
	case "disable":
		if len(fields) >= 2 {
			return CronAction{Sub: CronDisable, ID: fields[1]}
		}
	}
	return CronAction{Sub: CronUnknown}
}

// parseQuotedNameAndRest splits `"<name>" <rest>` into name (unquoted)
// and the remaining schedule text.
func parseQuotedNameAndRest(s string) (name, rest string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return "", s
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return "", s
	}
	end++ // account for the leading quote skipped above
	name = s[1:end]
	rest = strings.TrimSpace(s[end+1:])
	return name, rest
}
