package config

import (
	"reflect"
	"sort"
	"strings"

	logx "remindd/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) the changed sections that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	restart := make([]string, 0, 2)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.IsEnabled()),
			logx.String("scheduler.tick_interval", strings.TrimSpace(newCfg.Scheduler.TickInterval)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Bool("scheduler.rearm_windows_daily", newCfg.Scheduler.RearmWindowsDaily),
		)
	}

	oldN := oldCfg.NotifierOrDefault()
	newN := newCfg.NotifierOrDefault()
	if !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
			logx.Bool("notifier.console", newN.Sinks.Console),
			logx.Bool("notifier.desktop", newN.Sinks.Desktop.Enabled),
			logx.Bool("notifier.telegram", newN.Sinks.Telegram.Enabled),
			// never log the token itself
			logx.Bool("notifier.telegram_token_set", strings.TrimSpace(newN.Sinks.Telegram.Token) != ""),
		)
	}

	oldS := oldCfg.StorageOrDefault()
	newS := newCfg.StorageOrDefault()
	if strings.TrimSpace(oldS.Driver) != strings.TrimSpace(newS.Driver) ||
		strings.TrimSpace(oldS.Path) != strings.TrimSpace(newS.Path) ||
		strings.TrimSpace(oldS.BusyTimeout) != strings.TrimSpace(newS.BusyTimeout) {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	if !reflect.DeepEqual(derefAPI(oldCfg.API), derefAPI(newCfg.API)) {
		changed = append(changed, "api")
		restart = append(restart, "api")
		a := derefAPI(newCfg.API)
		attrs = append(attrs,
			logx.Bool("api.enabled", a.Enabled),
			logx.String("api.addr", strings.TrimSpace(a.Addr)),
			logx.Bool("api.token_set", strings.TrimSpace(a.Token) != ""),
			logx.Bool("api.pprof", a.Pprof),
		)
	}

	sort.Strings(changed)
	sort.Strings(restart)
	return changed, attrs, restart
}

func derefAPI(a *APIConfig) APIConfig {
	if a == nil {
		return APIConfig{}
	}
	return *a
}
