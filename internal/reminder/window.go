package reminder

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" (hour may be one digit) and "HH:MM:SS".
// Seconds are dropped; comparisons are minute precision.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time of day")
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

// Clock returns the time-of-day of t in t's location.
func Clock(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

// Window is a daily [Start, End] interval. Unset or malformed bounds are
// treated as absent.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	HasStart bool
	HasEnd   bool
}

// ParseWindow parses optional start/end strings.
func ParseWindow(start, end string) Window {
	var w Window
	if v, err := ParseTimeOfDay(start); err == nil {
		w.Start, w.HasStart = v, true
	}
	if v, err := ParseTimeOfDay(end); err == nil {
		w.End, w.HasEnd = v, true
	}
	return w
}

// Ended reports whether now is strictly after End.
func (w Window) Ended(now TimeOfDay) bool { return w.HasEnd && now > w.End }

// NotStarted reports whether now is strictly before Start.
func (w Window) NotStarted(now TimeOfDay) bool { return w.HasStart && now < w.Start }

// ReachedEnd reports whether now is at or after End. Recovery uses this
// stricter check when deciding whether to re-arm a job.
func (w Window) ReachedEnd(now TimeOfDay) bool { return w.HasEnd && now >= w.End }
