package notifier

import (
	"context"
	"time"

	kit "remindd/internal/transport"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	// DedupWindow is how long an enqueued firing (reminder id and second) is
	// remembered; a second enqueue of the same firing is dropped.
	DedupWindow time.Duration
}

type HistoryItem struct {
	At         time.Time `json:"at"`
	ReminderID string    `json:"reminderId"`
	Text       string    `json:"text"`
	Sinks      []string  `json:"sinks"`
	Error      string    `json:"error,omitempty"`
}

// Result is the final outcome of one notification across all sinks.
// Err is nil only if every sink delivered.
type Result struct {
	Notification kit.Notification
	Delivered    []string
	Err          error
}

// ResultHook observes final delivery outcomes. It runs on a worker goroutine.
type ResultHook func(ctx context.Context, r Result)

// NotificationEvent is emitted on the event bus for notifier lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type NotificationEvent struct {
	ReminderID string    `json:"reminderId"`
	Sink       string    `json:"sink,omitempty"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}
