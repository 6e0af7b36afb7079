package scheduler

import (
	"context"
	"strings"
	"time"

	"remindd/internal/eventbus"
	logx "remindd/pkg/logx"
)

func New(cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		entries:     map[string]*entry{},
		wake:        make(chan struct{}, 1),
		lastErrWarn: map[string]time.Time{},
	}
	for _, o := range opts {
		o(s)
	}
	s.loc = s.loadLocationLocked()
	return s
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config. A timezone change recomputes every job's next run;
// a tick interval change takes effect on the next loop iteration.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	intervalChanged := s.cfg.TickInterval != cfg.TickInterval
	s.cfg = cfg
	if oldTZ != newTZ {
		s.loc = s.loadLocationLocked()
		now := s.now().In(s.loc)
		for _, e := range s.entries {
			e.next = e.sched.Next(now)
		}
		s.log.Info("timezone changed; jobs rescheduled", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.entries)))
	}
	s.mu.Unlock()

	if intervalChanged {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Start launches the tick loop in its own goroutine. It is a no-op when
// disabled or already running.
func (s *Service) Start(ctx context.Context) {
	if !s.Enabled() {
		s.log.Info("scheduler disabled; tick loop not started")
		return
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	done := s.done
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
}

// Stop cancels the tick loop and waits for the in-flight tick to return or
// ctx to expire. Registered jobs are kept.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.running = false
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	s.log.Info("stop requested")
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Run ticks on a fixed period until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("tick loop started", logx.Duration("interval", s.tickInterval()), logx.String("tz", s.location().String()))
	timer := time.NewTimer(s.tickInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("tick loop exiting")
			return
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
			s.Tick(ctx)
		}
		timer.Reset(s.tickInterval())
	}
}

func (s *Service) tickInterval() time.Duration {
	s.mu.Lock()
	d := s.cfg.TickInterval
	s.mu.Unlock()
	if d <= 0 {
		return DefaultTickInterval
	}
	return d
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

func (s *Service) publish(topic, id string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Topic: topic, Subject: id, Data: data})
}
