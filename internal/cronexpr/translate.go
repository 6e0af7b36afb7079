package cronexpr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrUntranslatable is wrapped by every Translate failure.
var ErrUntranslatable = errors.New("unrecognized schedule")

// Source tells how an input was understood.
type Source string

const (
	SourceCron       Source = "cron"
	SourceDescriptor Source = "descriptor"
	SourcePhrase     Source = "phrase"
)

// Result is a normalized cron expression.
type Result struct {
	Expr   string
	Source Source
}

// parser accepts 5-field and 6-field (leading seconds) specs plus @descriptors.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses an already-normalized expression into a schedule.
func Parse(expr string) (cron.Schedule, error) {
	return parser.Parse(expr)
}

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reCronTok  = regexp.MustCompile(`^[0-9A-Za-z*/,\-?]+$`)
	reInterval = regexp.MustCompile(`^(?:every|each)\s+(?:(\d+)\s+)?(second|sec|minute|min|hour|hr)s?$`)
	reAt       = regexp.MustCompile(`(?:^|\s)at\s+(noon|midnight|\d{1,2}(?::\d{2})?\s*(?:am|pm)?)(?:\s|$)`)
	reClock    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	reDom      = regexp.MustCompile(`^(?:(?:every|each)\s+)?month(?:ly)?(?:\s+on)?(?:\s+the)?(?:\s+(\d{1,2})(?:st|nd|rd|th)?)?$`)
	reDomOf    = regexp.MustCompile(`^(?:on\s+)?(?:the\s+)?(\d{1,2})(?:st|nd|rd|th)?\s+(?:day\s+)?of\s+(?:every|each|the)\s+month$`)
)

var weekdays = map[string]int{
	"sun": 0, "sunday": 0, "sundays": 0,
	"mon": 1, "monday": 1, "mondays": 1,
	"tue": 2, "tues": 2, "tuesday": 2, "tuesdays": 2,
	"wed": 3, "wednesday": 3, "wednesdays": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4, "thursdays": 4,
	"fri": 5, "friday": 5, "fridays": 5,
	"sat": 6, "saturday": 6, "saturdays": 6,
}

var shorthands = map[string]string{
	"hourly":    "0 * * * *",
	"daily":     "0 0 * * *",
	"every day": "0 0 * * *",
	"weekly":    "0 0 * * 0",
	"monthly":   "0 0 1 * *",
	"yearly":    "0 0 1 1 *",
	"annually":  "0 0 1 1 *",
}

// Translate turns a cron expression or an English schedule phrase into a
// normalized cron expression.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "0 9 * * MON-FRI", "30 0 9 * * *" (seconds first), "@daily"
//   - Shorthands: "hourly", "daily", "weekly", "monthly", "yearly"
//   - Intervals: "every minute", "every 15 minutes", "every 30 seconds", "every 2 hours"
//   - Times: "every day at 9am", "every weekday at 09:30", "every weekend at 10:00",
//     "every mon, wed and fri at 7pm", "every month on the 1st at 00:00", "at 18:00 every day"
//
// Optional prefix "cron:" forces cron parsing.
func Translate(raw string) (Result, error) {
	s := strings.TrimSpace(reSpaces.ReplaceAllString(raw, " "))
	if s == "" {
		return Result{}, fmt.Errorf("%w: schedule required", ErrUntranslatable)
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if err := validate(expr); err != nil {
			return Result{}, fmt.Errorf("%w %q: %v", ErrUntranslatable, raw, err)
		}
		return Result{Expr: expr, Source: SourceCron}, nil
	}

	if strings.HasPrefix(s, "@") {
		if err := validate(low); err != nil {
			return Result{}, fmt.Errorf("%w %q: %v", ErrUntranslatable, raw, err)
		}
		return Result{Expr: low, Source: SourceDescriptor}, nil
	}

	if looksLikeCron(s) {
		if err := validate(s); err == nil {
			return Result{Expr: s, Source: SourceCron}, nil
		}
	}

	expr, err := translatePhrase(low)
	if err != nil {
		return Result{}, fmt.Errorf("%w %q: %v", ErrUntranslatable, raw, err)
	}
	if err := validate(expr); err != nil {
		return Result{}, fmt.Errorf("%w %q: %v", ErrUntranslatable, raw, err)
	}
	return Result{Expr: expr, Source: SourcePhrase}, nil
}

// Normalize is Translate returning only the expression.
func Normalize(raw string) (string, error) {
	res, err := Translate(raw)
	if err != nil {
		return "", err
	}
	return res.Expr, nil
}

func validate(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

func looksLikeCron(s string) bool {
	fields := strings.Fields(s)
	if len(fields) != 5 && len(fields) != 6 {
		return false
	}
	for _, f := range fields {
		if !reCronTok.MatchString(f) {
			return false
		}
	}
	return true
}

func translatePhrase(s string) (string, error) {
	if expr, ok := shorthands[s]; ok {
		return expr, nil
	}
	if m := reInterval.FindStringSubmatch(s); m != nil {
		return intervalExpr(m[1], m[2])
	}

	hour, minute := 0, 0
	rest := s
	if loc := reAt.FindStringSubmatchIndex(s); loc != nil {
		h, m, err := parseClock(s[loc[2]:loc[3]])
		if err != nil {
			return "", err
		}
		hour, minute = h, m
		rest = strings.TrimSpace(s[:loc[0]] + " " + s[loc[1]:])
	} else if s == "noon" || s == "midnight" {
		h, m, _ := parseClock(s)
		return fmt.Sprintf("%d %d * * *", m, h), nil
	}

	dom, dow, err := parseDays(rest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %s * %s", minute, hour, dom, dow), nil
}

func intervalExpr(nStr, unit string) (string, error) {
	n := 1
	if nStr != "" {
		v, err := strconv.Atoi(nStr)
		if err != nil || v <= 0 {
			return "", fmt.Errorf("invalid interval %q", nStr)
		}
		n = v
	}
	step := func(limit int) (string, error) {
		if n >= limit {
			return "", fmt.Errorf("interval %d %s too large", n, unit)
		}
		if n == 1 {
			return "*", nil
		}
		return "*/" + strconv.Itoa(n), nil
	}
	switch unit {
	case "second", "sec":
		f, err := step(60)
		if err != nil {
			return "", err
		}
		return f + " * * * * *", nil
	case "minute", "min":
		f, err := step(60)
		if err != nil {
			return "", err
		}
		return f + " * * * *", nil
	default:
		f, err := step(24)
		if err != nil {
			return "", err
		}
		return "0 " + f + " * * *", nil
	}
}

func parseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	switch s {
	case "noon":
		return 12, 0, nil
	case "midnight":
		return 0, 0, nil
	}
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid hour in %q", s)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid hour in %q", s)
		}
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return hour, minute, nil
}

// parseDays returns the day-of-month and day-of-week cron fields.
func parseDays(s string) (dom, dow string, err error) {
	s = strings.TrimSpace(s)
	if m := reDom.FindStringSubmatch(s); m != nil {
		return domField(m[1])
	}
	if m := reDomOf.FindStringSubmatch(s); m != nil {
		return domField(m[1])
	}

	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "every "), "each "))
	s = strings.TrimSpace(strings.TrimPrefix(s, "on "))
	switch s {
	case "", "day", "days", "daily", "every day":
		return "*", "*", nil
	case "weekday", "weekdays", "workday", "workdays":
		return "*", "1-5", nil
	case "weekend", "weekends":
		return "*", "6,0", nil
	}

	dow, err = weekdayList(s)
	if err != nil {
		return "", "", err
	}
	return "*", dow, nil
}

func domField(v string) (string, string, error) {
	if v == "" {
		return "1", "*", nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 31 {
		return "", "", fmt.Errorf("invalid day of month %q", v)
	}
	return strconv.Itoa(n), "*", nil
}

func weekdayList(s string) (string, error) {
	s = strings.ReplaceAll(s, " and ", ",")
	s = strings.ReplaceAll(s, "&", ",")
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) == 0 {
		return "", fmt.Errorf("no days in %q", s)
	}
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		if p == "every" || p == "each" || p == "on" {
			continue
		}
		var tok string
		if a, b, ok := strings.Cut(p, "-"); ok {
			from, ok1 := weekdays[a]
			to, ok2 := weekdays[b]
			if !ok1 || !ok2 {
				return "", fmt.Errorf("unknown day range %q", p)
			}
			tok = fmt.Sprintf("%d-%d", from, to)
		} else {
			d, ok := weekdays[p]
			if !ok {
				return "", fmt.Errorf("unknown day %q", p)
			}
			tok = strconv.Itoa(d)
		}
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return "", fmt.Errorf("no days in %q", s)
	}
	return strings.Join(out, ","), nil
}
