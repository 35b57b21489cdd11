// Package durationparse turns user-supplied proposal durations into whole
// minutes.
package durationparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxMinutes is the largest duration the voting contracts accept.
const MaxMinutes = math.MaxUint32

// ParseMinutes parses a duration and returns whole minutes (at least 1).
// Uses the current time as the reference point for calendar inputs.
//
// Supported formats:
//   - Bare minutes: "90"
//   - Units: "90m", "2h", "3d", "1w" (an optional leading "+" is allowed)
//   - Exact dates: "2026-03-01" (voting ends at 00:00 UTC that day)
//   - Day names: "monday", "tuesday", etc. (next occurrence)
//   - Keywords: "tomorrow", "next-week", "next-month"
func ParseMinutes(input string) (uint32, error) {
	return ParseMinutesFrom(input, time.Now())
}

// ParseMinutesFrom parses input relative to the given reference time.
// This variant enables deterministic testing with a fixed "now".
func ParseMinutesFrom(input string, now time.Time) (uint32, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if n, err := strconv.ParseInt(input, 10, 64); err == nil {
		return checked(n, input)
	}

	// Units: Nm, Nh, Nd, Nw
	if body := strings.TrimPrefix(input, "+"); len(body) >= 2 {
		suffix := body[len(body)-1]
		if n, err := strconv.ParseInt(body[:len(body)-1], 10, 64); err == nil {
			switch suffix {
			case 'm':
				return checked(n, input)
			case 'h':
				return checked(n*60, input)
			case 'd':
				return checked(n*60*24, input)
			case 'w':
				return checked(n*60*24*7, input)
			default:
				return 0, fmt.Errorf("unknown duration unit %q in %q (use m, h, d, or w)", string(suffix), input)
			}
		}
	}

	end, ok := calendarEnd(input, now)
	if !ok {
		return 0, fmt.Errorf("unrecognized duration: %q", input)
	}
	if !end.After(now) {
		return 0, fmt.Errorf("%q is in the past", input)
	}
	return checked(int64(math.Ceil(end.Sub(now).Minutes())), input)
}

func checked(n int64, input string) (uint32, error) {
	if n < 1 {
		return 0, fmt.Errorf("duration %q must be at least one minute", input)
	}
	if n > MaxMinutes {
		return 0, fmt.Errorf("duration %q is too long", input)
	}
	return uint32(n), nil
}

// calendarEnd resolves dates, keywords and day names to midnight UTC.
func calendarEnd(input string, now time.Time) (time.Time, bool) {
	now = now.UTC()
	midnight := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t, true
	}

	switch input {
	case "tomorrow":
		return midnight(now.AddDate(0, 0, 1)), true
	case "next-week":
		// Next Monday
		daysUntilMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		return midnight(now.AddDate(0, 0, daysUntilMonday)), true
	case "next-month":
		year, month, _ := now.Date()
		return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC), true
	}

	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysAhead := (int(target) - int(now.Weekday()) + 7) % 7
		if daysAhead == 0 {
			daysAhead = 7 // always advance to next occurrence
		}
		return midnight(now.AddDate(0, 0, daysAhead)), true
	}
	return time.Time{}, false
}
