package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks every field that would otherwise fail late, when a
// component applies the config. It is used at startup and as the Watch hook.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}

	dur("scheduler.tick_interval", cfg.Scheduler.TickInterval)
	dur("scheduler.restore_delay", cfg.Scheduler.RestoreDelay)
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "file", "sqlite", "memory":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		dur("storage.busy_timeout", cfg.Storage.BusyTimeout)
	}

	if cfg.API != nil {
		dur("api.read_timeout", cfg.API.ReadTimeout)
		dur("api.write_timeout", cfg.API.WriteTimeout)
	}

	n := cfg.NotifierOrDefault()
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
		add(errors.New("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0"))
	}
	dur("notifier.retry_base", n.RetryBase)
	dur("notifier.retry_max_delay", n.RetryMaxDelay)
	dur("notifier.send_timeout", n.SendTimeout)
	dur("notifier.dedup_window", n.DedupWindow)
	if t := n.Sinks.Telegram; t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			add(errors.New("notifier.sinks.telegram.token: required when enabled"))
		}
		if t.ChatID == 0 {
			add(errors.New("notifier.sinks.telegram.chat_id: required when enabled"))
		}
		dur("notifier.sinks.telegram.poll_timeout", t.PollTimeout)
	}

	return errors.Join(errs...)
}
