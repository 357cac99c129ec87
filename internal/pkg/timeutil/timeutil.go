// Package timeutil handles the Eastern-time session arithmetic the
// engine needs: trading windows, market hours and the forced-exit cutoff.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

var eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the engine functional; window checks just shift.
		loc = time.UTC
	}
	eastern = loc
}

// Eastern returns the exchange time zone.
func Eastern() *time.Location { return eastern }

// EasternNow returns the current wall clock in exchange time.
func EasternNow() time.Time { return time.Now().In(eastern) }

// TimeWindow is a half-open [Start, End] range of minutes since midnight.
type TimeWindow struct {
	StartMinutes int
	EndMinutes   int
}

// ParseWindow parses "HH:MM-HH:MM" into a TimeWindow.
func ParseWindow(s string) (TimeWindow, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return TimeWindow{}, fmt.Errorf("time window %q: want HH:MM-HH:MM", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return TimeWindow{}, fmt.Errorf("time window %q: %w", s, err)
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return TimeWindow{}, fmt.Errorf("time window %q: %w", s, err)
	}
	if end < start {
		return TimeWindow{}, fmt.Errorf("time window %q: end before start", s)
	}
	return TimeWindow{StartMinutes: start, EndMinutes: end}, nil
}

// ParseWindows parses a list of "HH:MM-HH:MM" ranges.
func ParseWindows(specs []string) ([]TimeWindow, error) {
	out := make([]TimeWindow, 0, len(specs))
	for _, s := range specs {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// ParseClock parses "HH:MM" into minutes since midnight. The whole
// string must match; trailing characters are an error.
func ParseClock(s string) (int, error) {
	var hh, mm int
	var rest string
	n, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d%s", &hh, &mm, &rest)
	if n < 2 && err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if rest != "" {
		return 0, fmt.Errorf("clock %q: trailing characters", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return hh*60 + mm, nil
}

// WithinAny reports whether t falls inside any window. An empty window
// list means no restriction.
func WithinAny(t time.Time, windows []TimeWindow) bool {
	if len(windows) == 0 {
		return true
	}
	minutes := minutesOfDay(t.In(eastern))
	for _, w := range windows {
		if minutes >= w.StartMinutes && minutes <= w.EndMinutes {
			return true
		}
	}
	return false
}

// AtOrPastClock reports whether t has reached cutoffMinutes (minutes
// since midnight, exchange time).
func AtOrPastClock(t time.Time, cutoffMinutes int) bool {
	return minutesOfDay(t.In(eastern)) >= cutoffMinutes
}

// SameTradingDay reports whether a and b fall on the same exchange-time
// calendar day.
func SameTradingDay(a, b time.Time) bool {
	ay, am, ad := a.In(eastern).Date()
	by, bm, bd := b.In(eastern).Date()
	return ay == by && am == bm && ad == bd
}

// IsRegularHours reports Mon-Fri 09:30-16:00 exchange time. The broker
// clock is authoritative; this is the cheap local pre-check.
func IsRegularHours(t time.Time) bool {
	t = t.In(eastern)
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minutes := minutesOfDay(t)
	return minutes >= 9*60+30 && minutes <= 16*60
}

// NextClock returns the next instant at hh:mm exchange time strictly
// after now. Used to schedule the daily pre-market scan.
func NextClock(now time.Time, clockMinutes int) time.Time {
	now = now.In(eastern)
	next := time.Date(now.Year(), now.Month(), now.Day(), clockMinutes/60, clockMinutes%60, 0, 0, eastern)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
