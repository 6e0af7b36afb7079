package service

import (
	"context"
	"sync"
	"time"

	"remindd/internal/cronexpr"
	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
	logx "remindd/pkg/logx"
)

// Registry is the job registry the coordinator keeps in step with the store.
type Registry interface {
	Add(id, spec string, job scheduler.Job) error
	Remove(id string) bool
	Has(id string) bool
	Snapshot() scheduler.Snapshot
}

// Bodies builds the job body for a reminder id.
type Bodies interface {
	Body(id string) scheduler.Job
}

type Config struct {
	// RearmWindowsDaily makes recovery register reminders whose daily window
	// already ended today; the window still gates each firing.
	RearmWindowsDaily bool
	Location          *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// Service coordinates the store and the registry. After every operation
// returns, the registry holds a job for a reminder iff it is schedulable.
//
// Mutations are serialized; job bodies read and stamp the store directly
// and never take the coordinator lock.
type Service struct {
	mu sync.Mutex

	store  *storage.Store
	reg    Registry
	bodies Bodies
	log    logx.Logger
	bus    eventbus.Bus
	now    func() time.Time

	cfgMu sync.RWMutex
	cfg   Config
}

func New(store *storage.Store, reg Registry, bodies Bodies, cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Service{
		store:  store,
		reg:    reg,
		bodies: bodies,
		log:    log,
		now:    time.Now,
		cfg:    cfg,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps the runtime config.
func (s *Service) Apply(cfg Config) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Service) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Jobs lists the registry contents.
func (s *Service) Jobs() []scheduler.JobInfo {
	return s.reg.Snapshot().Jobs
}

// HasJob reports whether the registry holds a job for id.
func (s *Service) HasJob(id string) bool {
	return s.reg.Has(id)
}

// Save persists the current snapshot. Used on shutdown.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(ctx)
}

// syncJob makes the registry agree with r. With force, an existing job is
// replaced even if r stays schedulable. Registry failures are logged only:
// the store already holds the truth and recovery rebuilds the registry.
func (s *Service) syncJob(r reminder.Reminder, force bool) {
	if !r.Schedulable() {
		s.reg.Remove(r.ID)
		return
	}
	if !force && s.reg.Has(r.ID) {
		return
	}
	if err := s.reg.Add(r.ID, r.Cron(), s.bodies.Body(r.ID)); err != nil {
		s.log.Warn("job registration failed", logx.String("id", r.ID), logx.String("spec", r.Cron()), logx.Any("err", err))
	}
}

// normalizeSchedule translates a user schedule into a cron expression.
// Nil or blank input means "no schedule".
func normalizeSchedule(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	if blank(*raw) {
		return reminder.Ptr(""), nil
	}
	expr, err := cronexpr.Normalize(*raw)
	if err != nil {
		return nil, reminder.E(reminder.KindValidation, "translate schedule", *raw, err)
	}
	return &expr, nil
}

func (s *Service) persist(ctx context.Context) error {
	return s.store.Save(ctx)
}

func (s *Service) publish(topic, subject string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Topic: topic, Subject: subject, Data: data})
}
