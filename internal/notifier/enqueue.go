package notifier

import (
	"context"
	"sync"
	"time"

	"remindd/internal/eventbus"
	kit "remindd/internal/transport"
)

// Notify enqueues n for delivery. It never waits on a sink.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	p, window, err := s.admit()
	if err != nil {
		return err
	}
	defer p.enqueues.Done()

	if n.At.IsZero() {
		n.At = time.Now()
	}
	ev := NotificationEvent{ReminderID: n.ReminderID, At: n.At}
	if window > 0 && n.ReminderID != "" && !s.dedup.add(n.ReminderID, n.At, window) {
		s.publish(eventbus.NotifyDeduped, ev)
		return nil
	}
	select {
	case p.queue <- n:
		s.publish(eventbus.NotifyQueued, ev)
		return nil
	default:
		ev.Error = ErrQueueFull.Error()
		s.publish(eventbus.NotifyDropped, ev)
		return ErrQueueFull
	}
}

// admit registers an enqueue on the running pipeline, which Stop waits for
// before closing the queue.
func (s *Service) admit() (*pipeline, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.cfg.Enabled:
		return nil, 0, ErrDisabled
	case len(s.sinks) == 0:
		return nil, 0, ErrNoSinks
	case s.run == nil || s.run.closing:
		return nil, 0, ErrStopped
	}
	s.run.enqueues.Add(1)
	return s.run, s.cfg.DedupWindow, nil
}

// firing identifies one scheduled fire of a reminder. Ticks of the same
// fire land in the same second; the next fire of even a 1s schedule does not.
type firing struct {
	reminderID string
	sec        int64
}

// firingSet remembers recently enqueued firings.
type firingSet struct {
	mu    sync.Mutex
	until map[firing]time.Time
}

func newFiringSet() *firingSet { return &firingSet{until: map[firing]time.Time{}} }

// add records the firing of id at at for retain past at and reports whether
// it was new.
func (f *firingSet) add(id string, at time.Time, retain time.Duration) bool {
	key := firing{reminderID: id, sec: at.Truncate(time.Second).Unix()}
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, exp := range f.until {
		if !at.Before(exp) {
			delete(f.until, k)
		}
	}
	if _, seen := f.until[key]; seen {
		return false
	}
	f.until[key] = at.Add(retain)
	return true
}
