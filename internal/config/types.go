package config

// Config is the daemon configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage and API are read once at startup; changes need a restart.
	Storage *StorageConfig `json:"storage,omitempty"`
	API     *APIConfig     `json:"api,omitempty"`

	// Notifier defaults to enabled with a console sink when omitted.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the tick engine and startup recovery.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - tick_interval: "500ms"
//   - timezone: local
//   - restore_delay: "100ms"
//   - rearm_windows_daily: false
type SchedulerConfig struct {
	// Enabled is opt-out: without the tick engine no reminder ever fires.
	Enabled      *bool  `json:"enabled,omitempty"`
	TickInterval string `json:"tick_interval,omitempty"`
	Timezone     string `json:"timezone,omitempty"`

	// RestoreDelay is how long after the tick engine starts recovery runs.
	RestoreDelay string `json:"restore_delay,omitempty"`

	// RearmWindowsDaily registers reminders whose daily window already ended
	// today; the window still gates every firing.
	RearmWindowsDaily bool `json:"rearm_windows_daily,omitempty"`
}

// IsEnabled reports whether the tick engine runs; an omitted value means yes.
func (s SchedulerConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// StorageConfig selects the snapshot backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/reminders.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// APIConfig controls the HTTP request layer.
//
// Prefer binding to localhost. A non-loopback addr needs a token or an
// explicit allow_insecure.
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8080"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`

	// Pprof mounts net/http/pprof under /debug/pprof/ on the API server.
	Pprof bool `json:"pprof,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`

	// Title is the notification heading. Default: "Reminder".
	Title string `json:"title,omitempty"`

	Sinks SinksConfig `json:"sinks"`
}

type SinksConfig struct {
	Console  bool               `json:"console"`
	Desktop  DesktopSinkConfig  `json:"desktop"`
	Telegram TelegramSinkConfig `json:"telegram"`
}

type DesktopSinkConfig struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command,omitempty"` // default: notify-send
}

type TelegramSinkConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// DefaultNotifier is used when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:       true,
		Workers:       2,
		QueueSize:     256,
		RatePerSec:    3,
		RetryMax:      3,
		RetryBase:     "500ms",
		RetryMaxDelay: "10s",
		DedupWindow:   "30s",
		Sinks:         SinksConfig{Console: true},
	}
}

// NotifierOrDefault returns the notifier section, defaulted when omitted.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c == nil || c.Notifier == nil {
		return DefaultNotifier()
	}
	return *c.Notifier
}

// StorageOrDefault returns the storage section, defaulted to a JSON file
// next to the working directory.
func (c *Config) StorageOrDefault() StorageConfig {
	if c == nil || c.Storage == nil {
		return StorageConfig{Driver: "file", Path: "./data/reminders.json"}
	}
	return *c.Storage
}
