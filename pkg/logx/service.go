package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string // default ./remindd.log
}

// Service owns the daemon's log sinks and lets config reloads swap them.
type Service struct {
	mu   sync.Mutex // serializes Apply and Close
	file *os.File
	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the Service with a Logger that follows it.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{root: s.current}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply rebuilds the sinks from cfg. The previous log file is closed only
// after the new root is live. Console is used when no sink is enabled.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sinks []io.Writer
		file  *os.File
	)
	if cfg.Console {
		sinks = append(sinks, newConsoleWriter(stdout()))
	}
	if cfg.File.Enabled {
		f, err := openLogFile(cfg.File.Path)
		if err != nil {
			fmt.Fprintf(stderr(), "logx: %v\n", err)
		} else {
			file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, newConsoleWriter(stdout()))
	}

	zl := newRoot(zerolog.MultiLevelWriter(sinks...), parseLevel(cfg.Level, zerolog.InfoLevel))
	s.root.Store(&zl)
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = file
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "./remindd.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}

// Close releases the log file; file output after Close is lost.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.file
	s.file = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

func stdout() io.Writer { return os.Stdout }

func stderr() io.Writer { return os.Stderr }
