// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cronsvc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// ParseScheduleArg parses the single expression surface spec §4.4
// defines: `at <ISO-8601>`, `every <N>{s|m|h}`, or `cron "<5-field
// expr>"`. Returns an error for anything else, including a 5-field
// expression gronx rejects as invalid.
func ParseScheduleArg(s string) (Schedule, error) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Schedule{}, fmt.Errorf("cronsvc: empty schedule")
	}

	switch strings.ToLower(fields[0]) {
	case "at":
		if len(fields) < 2 {
			return Schedule{}, fmt.Errorf("cronsvc: \"at\" requires an ISO-8601 timestamp")
		}
		t, err := time.Parse(time.RFC3339, fields[1])
		if err != nil {
			return Schedule{}, fmt.Errorf("cronsvc: invalid ISO-8601 timestamp %q: %w", fields[1], err)
		}
		ms := t.UnixMilli()
		return Schedule{At: &ms}, nil

	case "every":
		if len(fields) < 2 {
			return Schedule{}, fmt.Errorf("cronsvc: \"every\" requires a duration like 30m")
		}
		ms, err := parseEveryDuration(fields[1])
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Every: &ms}, nil

	case "cron":
		rest := strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
		expr := strings.Trim(rest, `"`)
		if !gronx.IsValid(expr) {
			return Schedule{}, fmt.Errorf("cronsvc: invalid cron expression %q", expr)
		}
		return Schedule{Cron: &expr}, nil

	default:
		return Schedule{}, fmt.Errorf("cronsvc: unrecognized schedule %q", s)
	}
}

// parseEveryDuration parses "<N>{s|m|h}" into milliseconds (spec §4.4).
func parseEveryDuration(s string) (int64, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("cronsvc: invalid duration %q", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cronsvc: invalid duration %q: %w", s, err)
	}
	var unitMs int64
	switch unit {
	case 's':
		unitMs = int64(time.Second / time.Millisecond)
	case 'm':
		unitMs = int64(time.Minute / time.Millisecond)
	case 'h':
		unitMs = int64(time.Hour / time.Millisecond)
	default:
		return 0, fmt.Errorf("cronsvc: unknown duration unit %q in %q", string(unit), s)
	}
	return n * unitMs, nil
}

// FormatSchedule renders a Schedule back to its canonical argument form,
// the inverse of ParseScheduleArg (spec R3: formatSchedule(parseScheduleArg(s)) == s).
func FormatSchedule(sch Schedule) string {
	switch {
	case sch.At != nil:
		return "at " + time.UnixMilli(*sch.At).UTC().Format(time.RFC3339)
	case sch.Every != nil:
		return "every " + formatEveryDuration(*sch.Every)
	case sch.Cron != nil:
		return fmt.Sprintf("cron %q", *sch.Cron)
	default:
		return ""
	}
}

func formatEveryDuration(ms int64) string {
	switch {
	case ms%int64(time.Hour/time.Millisecond) == 0:
		return strconv.FormatInt(ms/int64(time.Hour/time.Millisecond), 10) + "h"
	case ms%int64(time.Minute/time.Millisecond) == 0:
		return strconv.FormatInt(ms/int64(time.Minute/time.Millisecond), 10) + "m"
	default:
		return strconv.FormatInt(ms/int64(time.Second/time.Millisecond), 10) + "s"
	}
}

// NextFire computes the schedule's next fire time strictly after after
// (spec §4.4: "always recompute nextRunAtMs from the schedule").
func NextFire(sch Schedule, after time.Time) (time.Time, error) {
	switch {
	case sch.At != nil:
		t := time.UnixMilli(*sch.At)
		if t.After(after) {
			return t, nil
		}
		return time.Time{}, errScheduleTerminal

	case sch.Every != nil:
		interval := time.Duration(*sch.Every) * time.Millisecond
		if interval <= 0 {
			return time.Time{}, fmt.Errorf("cronsvc: non-positive every interval")
		}
		return after.Add(interval), nil

	case sch.Cron != nil:
		loc := time.Local
		if sch.TZ != nil && *sch.TZ != "" {
			l, err := time.LoadLocation(*sch.TZ)
			if err != nil {
				return time.Time{}, fmt.Errorf("cronsvc: invalid timezone %q: %w", *sch.TZ, err)
			}
			loc = l
		}
		// gronx exposes IsDue(expr, ref...time.Time) rather than a direct
		// "next fire" query, so the next matching minute is found by
		// scanning forward; cron fields only resolve to minute
		// granularity, bounded at 5 years out to guard against an
		// expression that can never match (e.g. Feb 30).
		cursor := after.In(loc).Truncate(time.Minute).Add(time.Minute)
		limit := after.AddDate(5, 0, 0)
		for cursor.Before(limit) {
			due, err := gronx.IsDue(*sch.Cron, cursor)
			if err != nil {
				return time.Time{}, fmt.Errorf("cronsvc: evaluate %q: %w", *sch.Cron, err)
			}
			if due {
				return cursor, nil
			}
			cursor = cursor.Add(time.Minute)
		}
		return time.Time{}, fmt.Errorf("cronsvc: %q never matches within 5 years", *sch.Cron)

	default:
		return time.Time{}, fmt.Errorf("cronsvc: empty schedule")
	}
}

// errScheduleTerminal marks an `at` schedule whose time has already
// passed: the job is terminal (spec §3's invariant for `at` schedules).
var errScheduleTerminal = fmt.Errorf("cronsvc: schedule is in the past, job is terminal")

// IsTerminal reports whether err is the "at time already passed" sentinel.
func IsTerminal(err error) bool { return err == errScheduleTerminal }
