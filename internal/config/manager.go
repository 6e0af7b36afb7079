package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	rtsup "remindd/internal/runtime/supervisor"
	logx "remindd/pkg/logx"
)

// ConfigManager owns the daemon's config file: it loads it, keeps the
// committed copy, and on Watch republishes every valid change.
type ConfigManager struct {
	path string
	log  logx.Logger

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64 // of cfg; equal hashes are not republished

	// subsMu is held while sending so Unsubscribe never closes mid-send.
	subsMu sync.Mutex
	subs   []chan *Config

	validator func(ctx context.Context, cfg *Config) error
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, log: logx.Nop()}
}

func (m *ConfigManager) SetLogger(log logx.Logger) {
	if !log.IsZero() {
		m.log = log
	}
}

// SetValidator installs the check a reloaded config must pass before it is
// committed and published.
func (m *ConfigManager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// Parse reads and strictly decodes the file without committing it.
func (m *ConfigManager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return decodeConfig(m.path, b)
}

func (m *ConfigManager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *ConfigManager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Unknown channels are ignored.
func (m *ConfigManager) Unsubscribe(ch chan *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if i := slices.Index(m.subs, ch); i >= 0 && ch != nil {
		m.subs = slices.Delete(m.subs, i, i+1)
		close(ch)
	}
}

// publish hands cfg to every subscriber. A full channel loses its oldest
// pending config so the newest always lands.
func (m *ConfigManager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if offerLatest(ch, cfg) {
			continue
		}
		m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
	}
}

func offerLatest(ch chan *Config, cfg *Config) bool {
	select {
	case ch <- cfg:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- cfg:
		return true
	default:
		return false
	}
}

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the file on every change until ctx ends. A watcher that
// breaks or cannot be created is recreated with backoff.
func (m *ConfigManager) Watch(ctx context.Context) error {
	bo := rtsup.NewBackoff(250*time.Millisecond, 5*time.Second)
	d := &debouncer{delay: reloadDebounce, fire: func() { m.reload(ctx) }}
	defer d.stop()

	for ctx.Err() == nil {
		started, err := m.watchOnce(ctx, func() {
			m.log.Debug("config change detected; scheduling reload", logx.String("path", m.path))
			d.poke()
		})
		if ctx.Err() != nil {
			break
		}
		if started {
			bo.Reset()
		}
		wait := bo.Next()
		m.log.Warn("config watcher stopped; restarting", logx.String("path", m.path), logx.Duration("backoff", wait), logx.Err(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
	return nil
}

// watchOnce watches the config file's directory until the watcher breaks or
// ctx ends. started reports whether the watch was ever established.
func (m *ConfigManager) watchOnce(ctx context.Context, changed func()) (started bool, err error) {
	dir, file := filepath.Dir(m.path), filepath.Base(m.path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("config watch init: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return false, fmt.Errorf("config watch %s: %w", dir, err)
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return true, errors.New("config watch: event stream closed")
			}
			if touchesFile(ev, file) {
				changed()
			}
		case werr, ok := <-w.Errors:
			switch {
			case !ok:
				return true, errors.New("config watch: error stream closed")
			case werr == nil:
			case errors.Is(werr, fsnotify.ErrEventOverflow):
				// Events may have been missed.
				m.log.Warn("config watch overflow; forcing reload", logx.String("dir", dir))
				changed()
			case strings.Contains(strings.ToLower(werr.Error()), "closed"):
				return true, werr
			default:
				m.log.Warn("config watch error", logx.String("dir", dir), logx.Err(werr))
			}
		}
	}
}

// touchesFile matches by base name so relative and absolute paths agree.
func touchesFile(ev fsnotify.Event, file string) bool {
	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
	return ev.Op&ops != 0 && strings.EqualFold(filepath.Base(ev.Name), file)
}

// debouncer runs fire once delay has passed since the last poke.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func()
	t     *time.Timer
}

func (d *debouncer) poke() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
}

// reload parses the file and, if the content changed and validates, commits
// and publishes it. It reports whether a new config was published.
func (m *ConfigManager) reload(ctx context.Context) bool {
	log := m.log.With(logx.String("path", m.path))
	cfg, err := m.Parse()
	if err != nil {
		log.Warn("config parse failed", logx.Err(err))
		return false
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		log.Debug("config unchanged; skipping publish")
		return false
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			log.Warn("config rejected", logx.Err(err))
			return false
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	log.Debug("config published", logx.String("hash", fmt.Sprintf("%x", h)))
	return true
}
