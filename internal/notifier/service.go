package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindd/internal/eventbus"
	rtsup "remindd/internal/runtime/supervisor"
	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
	ErrNoSinks   = errors.New("no notification sinks configured")
)

// Service is the delivery pipeline behind every reminder firing. It is safe
// for concurrent use; Start and Stop may be called repeatedly.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	bus     eventbus.Bus
	cfg     Config
	limiter *rate.Limiter
	sinks   []kit.Sink
	hook    ResultHook
	run     *pipeline // nil while stopped

	dedup   *firingSet
	history *historyRing
}

// pipeline is the queue and workers of one Start..Stop lifetime.
type pipeline struct {
	queue    chan kit.Notification
	sup      *rtsup.Supervisor
	enqueues sync.WaitGroup // Notify calls that may still send on queue
	closing  bool           // guarded by Service.mu
	stopped  chan struct{}  // closed once drained
}

func New(cfg Config, sinks []kit.Sink, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		log:     log,
		bus:     bus,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		sinks:   sinks,
		dedup:   newFiringSet(),
		history: &historyRing{},
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	c.RetryMax = max(c.RetryMax, 0)
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	c.DedupWindow = max(c.DedupWindow, 0)
	return c
}

// Apply swaps the config. Rate and retry settings apply to the next send;
// Workers and QueueSize wait for the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	// Burst equals the per-second rate so short spikes pass.
	s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	s.limiter.SetBurst(cfg.RatePerSec)
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// SetResultHook installs fn as the final-outcome observer.
func (s *Service) SetResultHook(fn ResultHook) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

// SetSinks swaps the sink set; in-flight sends keep the old set.
func (s *Service) SetSinks(sinks []kit.Sink) {
	s.mu.Lock()
	s.sinks = append([]kit.Sink(nil), sinks...)
	s.mu.Unlock()
}

// Sinks returns the names of the configured sinks.
func (s *Service) Sinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sinks))
	for _, sk := range s.sinks {
		names = append(names, sk.Name())
	}
	return names
}

// Tasks reports the worker loops; empty while stopped.
func (s *Service) Tasks() []rtsup.TaskState {
	s.mu.Lock()
	p := s.run
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.sup.Tasks()
}

// Start launches the workers. It is a no-op when disabled or running, and
// waits out a Stop still draining.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if p := s.run; p != nil && p.closing {
		s.mu.Unlock()
		select {
		case <-p.stopped:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.run != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	p := &pipeline{
		queue:   make(chan kit.Notification, s.cfg.QueueSize),
		stopped: make(chan struct{}),
		// Delivery failures are logged per notification and never stop the daemon.
		sup: rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log)),
	}
	s.run = p
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := range workers {
		p.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			return s.work(c, p.queue)
		}, rtsup.WithPublishFirstError(true))
	}
	s.log.Info("notifier started", logx.Int("workers", workers), logx.String("sinks", strings.Join(s.Sinks(), ",")))
}

// Stop refuses new notifications and lets the workers drain the queue until
// ctx ends, after which they are canceled.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	p := s.run
	if p == nil {
		s.mu.Unlock()
		return
	}
	first := !p.closing
	p.closing = true
	s.mu.Unlock()

	if first {
		go s.drain(p)
	}
	select {
	case <-p.stopped:
	case <-ctx.Done():
		p.sup.Cancel()
	}
}

// drain closes the queue once pending enqueues finish and retires p when
// every worker has returned.
func (s *Service) drain(p *pipeline) {
	p.enqueues.Wait()
	close(p.queue)
	_ = p.sup.Wait(context.Background())
	s.mu.Lock()
	if s.run == p {
		s.run = nil
	}
	s.mu.Unlock()
	close(p.stopped)
	s.log.Info("notifier stopped")
}

// work delivers from q until Stop closes it.
func (s *Service) work(ctx context.Context, q <-chan kit.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-q:
			if !ok {
				return nil
			}
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) publish(topic string, ev NotificationEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Topic: topic, Subject: ev.ReminderID, Time: ev.At, Data: ev})
}
