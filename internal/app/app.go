package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"remindd/internal/config"
	"remindd/internal/eventbus"
	"remindd/internal/notifier"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/service"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
	"remindd/internal/transport/httpapi"
	"remindd/internal/trigger"
	logx "remindd/pkg/logx"
	"remindd/pkg/systemd"
)

type App struct {
	cfgm  *config.ConfigManager
	supMu sync.Mutex
	sup   *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store *storage.Store
	sched *scheduler.Service
	notif *notifier.Service
	eval  *trigger.Evaluator
	svc   *service.Service
	api   *httpapi.Server

	restoreDelay time.Duration
}

// New loads the config, opens and loads storage, and wires every component.
// Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))
	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	// Load before anything reads the store; recovery uses its contents.
	if err := store.Load(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	appLog.Info("storage loaded",
		logx.String("driver", sc.Driver),
		logx.Int("groups", len(store.Groups())),
		logx.Int("reminders", len(store.Reminders())),
	)

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), scheduler.WithBus(bus))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, buildSinks(cfg, log.With(logx.String("comp", "notifier"))), log.With(logx.String("comp", "notifier")), bus)
	notif.SetResultHook(func(ctx context.Context, r notifier.Result) {
		rec := storage.FireRecord{
			ReminderID: r.Notification.ReminderID,
			Title:      r.Notification.Title,
			At:         r.Notification.At,
			Delivered:  r.Err == nil,
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		if err := store.RecordFire(ctx, rec); err != nil {
			log.Warn("fire history write failed", logx.String("id", rec.ReminderID), logx.Err(err))
		}
	})

	loc, err := mapLocation(cfg)
	if err != nil {
		return nil, err
	}
	eval := trigger.New(store, notif, log.With(logx.String("comp", "trigger")),
		trigger.WithLocation(loc),
		trigger.WithHeading(cfg.NotifierOrDefault().Title),
	)
	svc := service.New(store, sched, eval, service.Config{
		RearmWindowsDaily: cfg.Scheduler.RearmWindowsDaily,
		Location:          loc,
	}, log.With(logx.String("comp", "service")), service.WithBus(bus))

	delay, err := mapRestoreDelay(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:         cfgm,
		log:          appLog,
		logs:         logSvc,
		bus:          bus,
		store:        store,
		sched:        sched,
		notif:        notif,
		eval:         eval,
		svc:          svc,
		restoreDelay: delay,
	}
	if acfg, enabled, err := mapAPIConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		apiLog := log.With(logx.String("comp", "api"))
		a.api = httpapi.NewServer(acfg, httpapi.NewHandler(svc, notif, a, apiLog), apiLog)
	}
	return a, nil
}

// Tasks lists the daemon's supervised loops. Notifier workers and the API
// listener are reported under "notifier." and "api.".
func (a *App) Tasks() []rtsup.TaskState {
	out := a.supervisor().Tasks()
	out = append(out, prefixed("notifier.", a.notif.Tasks())...)
	if a.api != nil {
		out = append(out, prefixed("api.", a.api.Tasks())...)
	}
	return out
}

// supervisor returns the app supervisor, nil before Start.
func (a *App) supervisor() *rtsup.Supervisor {
	a.supMu.Lock()
	defer a.supMu.Unlock()
	return a.sup
}

func prefixed(prefix string, tasks []rtsup.TaskState) []rtsup.TaskState {
	for i := range tasks {
		tasks[i].Name = prefix + tasks[i].Name
	}
	return tasks
}

// Service exposes the coordinator, e.g. for an embedding CLI.
func (a *App) Service() *service.Service { return a.svc }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	sup := a.supervisor()
	if sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if sup := a.supervisor(); sup != nil {
		return sup.Err()
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.supMu.Lock()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.supMu.Unlock()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	a.sched.Start(a.sup.Context())

	// Recovery runs once, shortly after the tick loop is up.
	a.sup.Go("scheduler.restore", func(c context.Context) error {
		select {
		case <-c.Done():
			return nil
		case <-time.After(a.restoreDelay):
		}
		rep := a.svc.RestoreJobs(c)
		_, _ = systemd.Status(fmt.Sprintf("%d jobs registered", rep.Registered))
		return nil
	})

	if a.api != nil {
		a.api.Start(a.sup.Context())
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("topic", e.Topic), logx.String("subject", e.Subject), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		if err := systemd.Watchdog(c); err != nil {
			a.log.Warn("systemd watchdog unavailable", logx.Err(err))
		}
	})

	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify READY sent")
	}
	a.log.Info("app started")
	return nil
}

// applyConfig applies the hot-reloadable sections of newCfg.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if schedCfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.sched.Enabled()
		a.sched.Apply(schedCfg)
		switch {
		case wasEnabled && !schedCfg.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !wasEnabled && schedCfg.Enabled:
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}
	if loc, err := mapLocation(newCfg); err != nil {
		a.log.Warn("invalid timezone; keeping previous", logx.Err(err))
	} else {
		a.eval.SetLocation(loc)
		a.svc.Apply(service.Config{RearmWindowsDaily: newCfg.Scheduler.RearmWindowsDaily, Location: loc})
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		a.notif.SetSinks(buildSinks(newCfg, a.log.With(logx.String("comp", "notifier"))))
		a.eval.SetHeading(newCfg.NotifierOrDefault().Title)
		switch {
		case wasEnabled && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts components down in reverse dependency order and saves the
// store once more before closing it.
func (a *App) Stop(ctx context.Context, reason string) error {
	sup := a.supervisor()
	if sup == nil {
		return nil
	}
	_, _ = systemd.Stopping()
	a.log.Info("stopping", logx.String("reason", reason))

	sup.Cancel()

	// step bounds one shutdown step so it cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("api", 2*time.Second, func(c context.Context) error {
		if a.api != nil {
			a.api.Stop(c)
		}
		return nil
	})
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("save", 2*time.Second, a.svc.Save)
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
