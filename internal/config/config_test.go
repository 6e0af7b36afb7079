package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseJSONAndYAML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file string
		body string
	}{
		{"json", "config.json", `{
  "logging": {"level": "debug", "console": true},
  "scheduler": {"enabled": true, "tick_interval": "250ms", "timezone": "UTC", "rearm_windows_daily": true},
  "storage": {"driver": "sqlite", "path": "./r.db"},
  "notifier": {"enabled": true, "workers": 1, "title": "Heads up", "sinks": {"console": true}}
}`},
		{"yaml", "config.yaml", `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  tick_interval: 250ms
  timezone: UTC
  rearm_windows_daily: true
storage:
  driver: sqlite
  path: ./r.db
notifier:
  enabled: true
  workers: 1
  title: Heads up
  sinks:
    console: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewConfigManager(writeFile(t, tc.file, tc.body))
			cfg, err := m.Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Logging.Level != "debug" || !cfg.Scheduler.RearmWindowsDaily || cfg.Scheduler.TickInterval != "250ms" {
				t.Fatalf("unexpected config: %+v", cfg)
			}
			if got := cfg.StorageOrDefault().Driver; got != "sqlite" {
				t.Fatalf("storage driver=%q", got)
			}
			if got := cfg.NotifierOrDefault().Title; got != "Heads up" {
				t.Fatalf("notifier title=%q", got)
			}
			if m.Get() != cfg {
				t.Fatal("Load must commit the parsed config")
			}
			if err := Validate(cfg); err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestParseRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()

	cases := []struct{ file, body string }{
		{"c.json", `{"logging": {"level": "info"}, "plugins": {}}`},
		{"c.json", `{"logging": {"level": "info"}} {}`},
		{"c.yaml", "logging:\n  level: info\nplugins: {}\n"},
		{"c.yml", "logging:\n  level: info\n---\nlogging:\n  level: debug\n"},
	}
	for _, tc := range cases {
		m := NewConfigManager(writeFile(t, tc.file, tc.body))
		if _, err := m.Parse(); err == nil {
			t.Fatalf("expected error for %s: %s", tc.file, tc.body)
		}
	}
}

func TestParseEmptyYAML(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigManager(writeFile(t, "c.yaml", "# nothing yet\n")).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Scheduler.IsEnabled() || cfg.StorageOrDefault().Driver != "file" {
		t.Fatalf("empty yaml must yield defaults: %+v", cfg)
	}
}

func TestWatchPublishesEdits(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "c.yaml", "logging:\n  level: info\n")
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watch: %v", err)
		}
	}()

	// The watcher may not be armed yet; keep rewriting until a publish lands.
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		level := []string{"debug", "warn"}[i%2]
		if err := os.WriteFile(p, []byte("logging:\n  level: "+level+"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" && cfg.Logging.Level != "warn" {
				t.Fatalf("published level=%q", cfg.Logging.Level)
			}
			return
		case <-time.After(400 * time.Millisecond):
		case <-deadline:
			t.Fatal("no config published after edits")
		}
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	n := cfg.NotifierOrDefault()
	if !n.Enabled || !n.Sinks.Console || n.Sinks.Telegram.Enabled {
		t.Fatalf("unexpected notifier defaults: %+v", n)
	}
	if s := cfg.StorageOrDefault(); s.Driver != "file" || s.Path == "" {
		t.Fatalf("unexpected storage defaults: %+v", s)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Fatal("scheduler must default to enabled")
	}
	off := false
	if (SchedulerConfig{Enabled: &off}).IsEnabled() {
		t.Fatal("explicit enabled=false must disable the scheduler")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"ok", Config{}, ""},
		{"bad level", Config{Logging: LoggingConfig{Level: "loud"}}, "logging.level"},
		{"bad tz", Config{Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"}}, "scheduler.timezone"},
		{"bad tick", Config{Scheduler: SchedulerConfig{TickInterval: "soon"}}, "scheduler.tick_interval"},
		{"negative delay", Config{Scheduler: SchedulerConfig{RestoreDelay: "-1s"}}, "scheduler.restore_delay"},
		{"bad driver", Config{Storage: &StorageConfig{Driver: "mongo"}}, "storage.driver"},
		{"telegram without token", Config{Notifier: &NotifierConfig{Enabled: true, Sinks: SinksConfig{Telegram: TelegramSinkConfig{Enabled: true, ChatID: 1}}}}, "telegram.token"},
		{"file logging without path", Config{Logging: LoggingConfig{File: LoggingFile{Enabled: true}}}, "logging.file.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tc.cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Scheduler: SchedulerConfig{Timezone: "UTC"}}
	newCfg := &Config{
		Scheduler: SchedulerConfig{Timezone: "Europe/Berlin"},
		Storage:   &StorageConfig{Driver: "sqlite", Path: "./r.db"},
		API:       &APIConfig{Enabled: true, Addr: "127.0.0.1:9000"},
	}
	changed, attrs, restart := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "api,scheduler,storage" {
		t.Fatalf("changed=%v", changed)
	}
	if strings.Join(restart, ",") != "api,storage" {
		t.Fatalf("restart=%v", restart)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}

	changed, _, restart = SummarizeConfigChange(newCfg, newCfg)
	if len(changed) != 0 || len(restart) != 0 {
		t.Fatalf("identical configs reported changes: %v %v", changed, restart)
	}
}

func TestReloadPublishesOnlyValidChanges(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "c.json", `{"logging": {"level": "info"}}`)
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error { return Validate(cfg) })
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx := context.Background()

	if m.reload(ctx) {
		t.Fatal("unchanged content must not publish")
	}

	if err := os.WriteFile(p, []byte(`{"logging": {"level": "shouting"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if m.reload(ctx) {
		t.Fatal("invalid config must not publish")
	}

	if err := os.WriteFile(p, []byte(`{"logging": {"level": "debug"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if !m.reload(ctx) {
		t.Fatal("valid change must publish")
	}
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level=%q", cfg.Logging.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatal("reload must commit")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 5 * time.Second, false},
		{"0s", 5 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"later", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationOrDefault("x", tc.raw, 5*time.Second)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err=%v", tc.raw, err)
		}
		if !tc.wantErr && got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.raw, got, tc.want)
		}
	}
}
