package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Schedule is a parsed job schedule expression. Supported forms:
//
//	every 5m
//	every 1h
//	every 30m between 09:00-17:30
//
// The interval fires on a fixed cadence from the last run; the optional
// window constrains fires to a daily local-time range. A window spanning
// midnight (e.g. 22:00-06:00) is allowed.
type Schedule struct {
	Every       time.Duration
	WindowStart int // minutes from midnight, -1 when unset
	WindowEnd   int
}

const minInterval = 10 * time.Second

// Parse validates and decodes a schedule expression.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) < 2 || fields[0] != "every" {
		return nil, fmt.Errorf("invalid schedule %q: want \"every <duration> [between HH:MM-HH:MM]\"", expr)
	}

	every, err := time.ParseDuration(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if every < minInterval {
		return nil, fmt.Errorf("invalid schedule %q: interval below %s", expr, minInterval)
	}

	s := &Schedule{Every: every, WindowStart: -1, WindowEnd: -1}

	switch len(fields) {
	case 2:
		return s, nil
	case 4:
		if fields[2] != "between" {
			return nil, fmt.Errorf("invalid schedule %q: expected \"between\"", expr)
		}
		start, end, ok := strings.Cut(fields[3], "-")
		if !ok {
			return nil, fmt.Errorf("invalid schedule %q: window wants HH:MM-HH:MM", expr)
		}
		s.WindowStart, err = parseClock(start)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		s.WindowEnd, err = parseClock(end)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		if s.WindowStart == s.WindowEnd {
			return nil, fmt.Errorf("invalid schedule %q: empty window", expr)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("invalid schedule %q", expr)
	}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// InWindow reports whether t falls inside the daily window. Schedules
// without a window always qualify.
func (s *Schedule) InWindow(t time.Time) bool {
	if s.WindowStart < 0 {
		return true
	}
	m := t.Hour()*60 + t.Minute()
	if s.WindowStart < s.WindowEnd {
		return m >= s.WindowStart && m < s.WindowEnd
	}
	// window crosses midnight
	return m >= s.WindowStart || m < s.WindowEnd
}

// Next returns the earliest fire time at or after the interval elapsing
// from last, pushed forward to the window opening when necessary.
func (s *Schedule) Next(last time.Time) time.Time {
	next := last.Add(s.Every)
	if s.InWindow(next) {
		return next
	}

	// jump to the next window opening
	day := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
	open := day.Add(time.Duration(s.WindowStart) * time.Minute)
	if !open.After(next) {
		open = open.Add(24 * time.Hour)
	}
	return open
}

// Due reports whether a job with the given next-run marker should fire now.
// A nil marker means the job has never been scheduled and is due immediately
// (window permitting).
func (s *Schedule) Due(nextRun *time.Time, now time.Time) bool {
	if !s.InWindow(now) {
		return false
	}
	return nextRun == nil || !nextRun.After(now)
}
