package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	logx "remindd/pkg/logx"
)

// Supervisor runs named background loops under one context and keeps the
// first failure. With WithCancelOnError a failure also stops the others.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	wg       sync.WaitGroup
	waitOnce sync.Once
	done     chan struct{}

	mu    sync.Mutex
	err   error
	tasks map[string]*TaskState
}

type Option func(*Supervisor)

// TaskState is the observable state of one named loop.
type TaskState struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Starts    int       `json:"starts"`
	Restarts  int       `json:"restarts"`
	Panics    int       `json:"panics"`
	StartedAt time.Time `json:"startedAt"`
	StoppedAt time.Time `json:"stoppedAt,omitzero"`
	LastError string    `json:"lastError,omitempty"`
}

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		tasks:  map[string]*TaskState{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first recorded failure.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Tasks returns every loop started so far, sorted by name. A nil
// Supervisor has none.
func (s *Supervisor) Tasks() []TaskState {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := make([]TaskState, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Go runs fn once. A non-nil result other than context.Canceled, or a
// panic, is a failure.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.begin(name, false)
		err := s.run(name, fn)
		s.end(name, err)
		if err != nil {
			s.setErr(err)
			if s.cancelOnErr {
				s.cancel()
			}
		}
	}()
}

// Go0 is Go for loops that cannot fail.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

type RestartOption func(*restartCfg)

type restartCfg struct {
	minBackoff      time.Duration
	maxBackoff      time.Duration
	publishFirstErr bool
}

func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(c *restartCfg) {
		if min > 0 {
			c.minBackoff = min
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

// WithPublishFirstError records restart-loop failures in Err. They never
// cancel the Supervisor.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(c *restartCfg) { c.publishFirstErr = enabled }
}

// GoRestart runs fn until it returns nil or the context ends, restarting it
// with backoff after every failure.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	cfg := restartCfg{minBackoff: 250 * time.Millisecond, maxBackoff: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bo := NewBackoff(cfg.minBackoff, cfg.maxBackoff)
		for restart := false; ; restart = true {
			s.begin(name, restart)
			startedAt := time.Now()
			err := s.run(name, fn)
			if s.ctx.Err() != nil {
				err = nil
			}
			s.end(name, err)
			if err == nil {
				return
			}
			if cfg.publishFirstErr {
				s.setErr(err)
			}
			// A loop that ran for a while starts over at the shortest delay.
			if time.Since(startedAt) >= 30*time.Second {
				bo.Reset()
			}
			wait := bo.Next()
			s.log.Warn("task restarting", logx.String("task", name), logx.Duration("backoff", wait), logx.Err(err))
			t := time.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()
}

// Wait blocks until every loop has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// run calls fn with panics turned into errors.
func (s *Supervisor) run(name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.task(name).Panics++
			s.mu.Unlock()
			s.log.Error("task panicked", logx.String("task", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	s.log.Debug("task started", logx.String("task", name))
	err = fn(s.ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Supervisor) begin(name string, restart bool) {
	s.mu.Lock()
	t := s.task(name)
	t.Running = true
	t.Starts++
	if restart {
		t.Restarts++
	}
	t.StartedAt = time.Now()
	s.mu.Unlock()
}

func (s *Supervisor) end(name string, err error) {
	s.mu.Lock()
	t := s.task(name)
	t.Running = false
	t.StoppedAt = time.Now()
	if err != nil {
		t.LastError = err.Error()
	}
	s.mu.Unlock()
	s.log.Debug("task stopped", logx.String("task", name))
}

// task must be called with mu held.
func (s *Supervisor) task(name string) *TaskState {
	t := s.tasks[name]
	if t == nil {
		t = &TaskState{Name: name}
		s.tasks[name] = t
	}
	return t
}

func (s *Supervisor) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}
