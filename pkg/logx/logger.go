package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field adds one key to an event. A later field with the same key wins.
type Field func(e *zerolog.Event)

func String(k, v string) Field                 { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field                { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field            { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Bool(k string, v bool) Field              { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field { return func(e *zerolog.Event) { e.Dur(k, v) } }
func Time(k string, v time.Time) Field         { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field                { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Err adds err under "err"; a nil error adds nothing.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger writes structured events through whatever root it was built on.
// Loggers from New follow Service.Apply. The zero Logger discards.
type Logger struct {
	root   func() zerolog.Logger
	fields []Field
}

func fixed(zl zerolog.Logger) func() zerolog.Logger {
	return func() zerolog.Logger { return zl }
}

// Nop returns a logger that never writes anything.
func Nop() Logger { return Logger{root: fixed(zerolog.Nop())} }

// NewConsole returns a human-readable stdout logger for use before, and
// after, the configured Service.
func NewConsole(level string) Logger {
	setGlobals()
	return Logger{root: fixed(newRoot(newConsoleWriter(stdout()), parseLevel(level, zerolog.InfoLevel)))}
}

// NewWriter writes JSON events to w, mainly for tests.
func NewWriter(w io.Writer, level string) Logger {
	return Logger{root: fixed(newRoot(w, parseLevel(level, zerolog.DebugLevel)))}
}

func (l Logger) IsZero() bool { return l.root == nil && len(l.fields) == 0 }

func (l Logger) current() zerolog.Logger {
	if l.root == nil {
		return zerolog.Nop()
	}
	return l.root()
}

// Enabled reports whether level would be written.
func (l Logger) Enabled(level Level) bool { return level >= l.current().GetLevel() }

// With returns a logger that adds fields to every event.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append([]Field(nil), l.fields...), fields...)
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(zerolog.TraceLevel, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields) }

// log must be called directly by the level methods; the caller frame is
// counted from here.
func (l Logger) log(level zerolog.Level, msg string, fields []Field) {
	zl := l.current()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

func newRoot(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

// parseLevel accepts zerolog's level names plus "warning"; anything else,
// blank included, is def.
func parseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return def
	}
	return lvl
}

func setGlobals() {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"
}
