package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"remindd/internal/cronexpr"
	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// Add parses spec and registers job under id.
//
// Re-adding an existing id replaces the previous job, so callers never leak
// an orphan schedule. An unparseable spec fails with a scheduler error and
// leaves any existing job for id untouched.
func (s *Service) Add(id, spec string, job Job) error {
	if strings.TrimSpace(id) == "" {
		return reminder.E(reminder.KindScheduler, "register job", "", errors.New("id required"))
	}
	if job == nil {
		return reminder.E(reminder.KindScheduler, "register job", id, errors.New("job required"))
	}
	spec = strings.TrimSpace(spec)
	sched, err := cronexpr.Parse(spec)
	if err != nil {
		return reminder.E(reminder.KindScheduler, "register job", id, fmt.Errorf("invalid cron %q: %w", spec, err))
	}

	s.mu.Lock()
	now := s.now().In(s.loc)
	_, replaced := s.entries[id]
	e := &entry{
		id:      id,
		spec:    spec,
		sched:   sched,
		job:     job,
		addedAt: now,
		next:    sched.Next(now),
	}
	s.entries[id] = e
	next := s.previewNextRunsLocked(e, 3)
	s.mu.Unlock()

	args := []logx.Field{logx.String("id", id), logx.String("spec", spec), logx.Bool("replaced", replaced)}
	if next != "" {
		args = append(args, logx.String("next", next))
	}
	s.log.Debug("job registered", args...)
	s.publish(eventbus.JobAdded, id, map[string]any{"spec": spec})
	return nil
}

// Remove evicts the job for id. Removing an absent id is not an error.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if !ok {
		s.log.Debug("job remove ignored; not registered", logx.String("id", id))
		return false
	}
	s.log.Debug("job removed", logx.String("id", id))
	s.publish(eventbus.JobRemoved, id, nil)
	return true
}

// Has reports whether a job is registered for id.
func (s *Service) Has(id string) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	s.mu.Unlock()
	return ok
}

// Len returns the number of registered jobs.
func (s *Service) Len() int {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return n
}

// IDs returns the registered ids in sorted order.
func (s *Service) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Tick runs every job whose next run is at or before now and returns how
// many bodies were invoked.
//
// Due jobs are collected and advanced under the registry lock; bodies run
// after it is released, in id order, on the caller's goroutine. A tick that
// starts while another is still running is skipped.
func (s *Service) Tick(ctx context.Context) int {
	if !s.tickMu.TryLock() {
		s.skipped.Add(1)
		s.log.Debug("tick skipped; previous tick still running")
		return 0
	}
	defer s.tickMu.Unlock()
	s.ticks.Add(1)

	s.mu.Lock()
	now := s.now().In(s.loc)
	var due []dueJob
	for _, e := range s.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		e.prev = now
		e.next = e.sched.Next(now)
		e.fires++
		due = append(due, dueJob{id: e.id, job: e.job})
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })
	for _, d := range due {
		s.runJob(ctx, d)
	}
	return len(due)
}

func (s *Service) runJob(ctx context.Context, d dueJob) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
				s.log.Error("job panic", logx.String("id", d.id), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
			}
		}()
		return d.job(ctx)
	}()
	s.fired.Add(1)
	if err != nil {
		s.failures.Add(1)
		s.reportJobError(d.id, err)
		return
	}
	s.log.Trace("job ran", logx.String("id", d.id), logx.Duration("took", time.Since(start)))
	s.publish(eventbus.JobFired, d.id, nil)
}

// previewNextRunsLocked returns a short, human-friendly list of upcoming run
// times for e. Call with s.mu held.
func (s *Service) previewNextRunsLocked(e *entry, n int) string {
	if s.log.IsZero() || !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	t := s.now().In(s.loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = e.sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
