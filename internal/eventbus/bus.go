// Package eventbus fans engine events out to in-process observers. Publish
// never blocks: a subscriber whose buffer is full misses the event.
package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Topics. Status changes publish ReminderPrefix plus the new status
// ("reminder.paused", "reminder.cancelled", ...).
const (
	ReminderPrefix  = "reminder."
	ReminderCreated = "reminder.created"
	ReminderUpdated = "reminder.updated"
	ReminderPurged  = "reminder.purged"

	GroupCreated = "group.created"
	GroupDeleted = "group.deleted"

	JobAdded     = "scheduler.job_added"
	JobRemoved   = "scheduler.job_removed"
	JobFired     = "scheduler.job_fired"
	JobsRestored = "scheduler.restored"

	NotifyQueued  = "notifier.queued"
	NotifyDeduped = "notifier.deduped"
	NotifyDropped = "notifier.dropped"
	NotifySent    = "notifier.sent"
	NotifyFailed  = "notifier.failed"
)

// Event is one signal. Subject is the reminder, group or job id it concerns,
// empty for engine-wide events.
type Event struct {
	Topic   string
	Subject string
	Time    time.Time
	Data    any
}

type Bus interface {
	Publish(e Event)
	// Subscribe returns events whose topic starts with one of prefixes, or
	// all events when none are given. Cancel closes the channel.
	Subscribe(buffer int, prefixes ...string) (events <-chan Event, cancel func())
	// Dropped counts deliveries lost to full subscriber buffers.
	Dropped() uint64
}

func New() Bus { return &memBus{} }

type subscriber struct {
	ch       chan Event
	prefixes []string
}

func (s *subscriber) wants(topic string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

type memBus struct {
	// Sends happen under the read lock and close under the write lock, so a
	// canceled subscriber is never sent to.
	mu      sync.RWMutex
	subs    []*subscriber
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Topic) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int, prefixes ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &subscriber{ch: make(chan Event, buffer), prefixes: prefixes}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			for i, s := range b.subs {
				if s == sub {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			close(sub.ch)
			b.mu.Unlock()
		})
	}
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
