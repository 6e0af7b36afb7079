package app

import (
	"fmt"
	"strings"
	"time"

	"remindd/internal/config"
	"remindd/internal/notifier"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
	kit "remindd/internal/transport"
	"remindd/internal/transport/httpapi"
	"remindd/internal/transport/telegram"
	logx "remindd/pkg/logx"
)

const (
	defaultRestoreDelay = 100 * time.Millisecond
	defaultBusyTimeout  = time.Second
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval", cfg.Scheduler.TickInterval, scheduler.DefaultTickInterval)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:      cfg.Scheduler.IsEnabled(),
		TickInterval: tick,
		Timezone:     strings.TrimSpace(cfg.Scheduler.Timezone),
	}, nil
}

func mapRestoreDelay(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("scheduler.restore_delay", cfg.Scheduler.RestoreDelay, defaultRestoreDelay)
}

// mapLocation resolves the timezone window checks run in.
func mapLocation(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.StorageOrDefault()
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "memory":
		return storage.Config{Driver: "memory"}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.NotifierOrDefault()
	out := notifier.Config{
		Enabled:    n.Enabled,
		Workers:    n.Workers,
		QueueSize:  n.QueueSize,
		RatePerSec: n.RatePerSec,
		RetryMax:   n.RetryMax,
	}
	var err error
	if out.RetryBase, err = config.ParseDurationField("notifier.retry_base", n.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.SendTimeout, err = config.ParseDurationField("notifier.send_timeout", n.SendTimeout); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

// buildSinks constructs the enabled delivery sinks. A sink that cannot be
// built is logged and skipped so one bad credential does not silence the rest.
func buildSinks(cfg *config.Config, log logx.Logger) []kit.Sink {
	n := cfg.NotifierOrDefault()
	var sinks []kit.Sink
	if n.Sinks.Console {
		sinks = append(sinks, kit.NewConsoleSink(log.With(logx.String("sink", "console"))))
	}
	if n.Sinks.Desktop.Enabled {
		sinks = append(sinks, kit.NewDesktopSink(n.Sinks.Desktop.Command))
	}
	if t := n.Sinks.Telegram; t.Enabled {
		poll, err := config.ParseDurationField("notifier.sinks.telegram.poll_timeout", t.PollTimeout)
		if err == nil {
			var s *telegram.Sender
			s, err = telegram.New(telegram.Config{
				Token:       t.Token,
				ChatID:      t.ChatID,
				ThreadID:    t.ThreadID,
				PollTimeout: poll,
			}, log.With(logx.String("sink", "telegram")))
			if err == nil {
				sinks = append(sinks, s)
			}
		}
		if err != nil {
			log.Warn("telegram sink disabled", logx.Err(err))
		}
	}
	return sinks
}

func mapAPIConfig(cfg *config.Config) (httpapi.Config, bool, error) {
	if cfg.API == nil || !cfg.API.Enabled {
		return httpapi.Config{}, false, nil
	}
	a := cfg.API
	read, err := config.ParseDurationOrDefault("api.read_timeout", a.ReadTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, false, err
	}
	write, err := config.ParseDurationOrDefault("api.write_timeout", a.WriteTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, false, err
	}
	if a.Pprof {
		// /debug/pprof/profile streams for 30s by default.
		write = 0
	}
	return httpapi.Config{
		Addr:          strings.TrimSpace(a.Addr),
		Token:         strings.TrimSpace(a.Token),
		AllowInsecure: a.AllowInsecure,
		Pprof:         a.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
	}, true, nil
}
