package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"remindd/internal/reminder"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

const DefaultHeading = "Reminder"

// Decision is the outcome of evaluating a due job.
type Decision int

const (
	Fire Decision = iota
	SkipMissing
	SkipInactive
	SkipEnded
	SkipNotStarted
)

func (d Decision) String() string {
	switch d {
	case Fire:
		return "fire"
	case SkipMissing:
		return "skip_missing"
	case SkipInactive:
		return "skip_inactive"
	case SkipEnded:
		return "skip_ended"
	case SkipNotStarted:
		return "skip_not_started"
	default:
		return "unknown"
	}
}

// Decide gates a due reminder on its flags and daily window. Window bounds
// are compared by minute of day; unparseable bounds are ignored.
func Decide(r reminder.Reminder, now time.Time) Decision {
	if !r.IsActive() {
		return SkipInactive
	}
	w := r.Window()
	tod := reminder.Clock(now)
	if w.Ended(tod) {
		return SkipEnded
	}
	if w.NotStarted(tod) {
		return SkipNotStarted
	}
	return Fire
}

// Store is the slice of storage the evaluator needs.
type Store interface {
	FindReminder(id string) (reminder.Reminder, bool)
	MutateReminder(id string, fn func(r *reminder.Reminder) error) (reminder.Reminder, error)
	Save(ctx context.Context) error
	RecordFire(ctx context.Context, rec storage.FireRecord) error
}

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type Option func(*Evaluator)

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone used to compute time of day.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithHeading sets the heading shown above the reminder title.
func WithHeading(h string) Option {
	return func(e *Evaluator) {
		if h != "" {
			e.heading = h
		}
	}
}

// Evaluator builds job bodies. A body re-reads the reminder from the store
// every time it runs, so flag and window edits made after registration are
// honored without re-registering.
type Evaluator struct {
	store    Store
	notifier Notifier
	log      logx.Logger
	now      func() time.Time

	mu      sync.RWMutex
	loc     *time.Location
	heading string
}

func New(store Store, notifier Notifier, log logx.Logger, opts ...Option) *Evaluator {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Evaluator{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		loc:      time.Local,
		heading:  DefaultHeading,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetHeading changes the heading of later notifications. Empty restores
// the default.
func (e *Evaluator) SetHeading(h string) {
	if h == "" {
		h = DefaultHeading
	}
	e.mu.Lock()
	e.heading = h
	e.mu.Unlock()
}

// SetLocation changes the zone window checks run in.
func (e *Evaluator) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	e.mu.Lock()
	e.loc = loc
	e.mu.Unlock()
}

func (e *Evaluator) location() *time.Location {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loc
}

func (e *Evaluator) Heading() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.heading
}

// Body returns the registry job for reminder id.
func (e *Evaluator) Body(id string) scheduler.Job {
	return func(ctx context.Context) error {
		_, err := e.Run(ctx, id)
		return err
	}
}

// Run evaluates and, if due, fires reminder id. Notification failures are
// logged and swallowed; only a failure to persist lastTriggeredAt is returned.
func (e *Evaluator) Run(ctx context.Context, id string) (Decision, error) {
	r, ok := e.store.FindReminder(id)
	if !ok {
		e.log.Debug("due reminder no longer stored; skipping", logx.String("id", id))
		return SkipMissing, nil
	}
	now := e.now().In(e.location())
	d := Decide(r, now)
	if d != Fire {
		e.log.Trace("due reminder skipped", logx.String("id", id), logx.String("reason", d.String()))
		return d, nil
	}

	n := kit.Notification{
		ReminderID: r.ID,
		Heading:    e.Heading(),
		Title:      r.Title,
		At:         now,
	}
	if r.Description != nil {
		n.Body = *r.Description
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Warn("notification not accepted", logx.String("id", id), logx.Any("err", err))
			rec := storage.FireRecord{ReminderID: r.ID, Title: r.Title, At: now, Error: err.Error()}
			if rerr := e.store.RecordFire(ctx, rec); rerr != nil {
				e.log.Debug("fire record failed", logx.String("id", id), logx.Any("err", rerr))
			}
		}
	}

	_, err := e.store.MutateReminder(id, func(cur *reminder.Reminder) error {
		t := now
		cur.LastTriggeredAt = &t
		return nil
	})
	if errors.Is(err, reminder.ErrNotFound) {
		// Removed between the read and the write.
		return Fire, nil
	}
	if err != nil {
		return Fire, err
	}
	if err := e.store.Save(ctx); err != nil {
		return Fire, err
	}
	e.log.Info("reminder fired", logx.String("id", id), logx.String("title", r.Title))
	return Fire, nil
}
