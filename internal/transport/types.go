package transport

import (
	"context"
	"time"
)

// Notification is one reminder firing as shown to the user.
type Notification struct {
	ReminderID string
	Heading    string // e.g. "Reminder"
	Title      string // the reminder's title
	Body       string // optional description
	At         time.Time
}

// Text renders the notification as plain text.
func (n Notification) Text() string {
	s := n.Title
	if n.Heading != "" {
		s = n.Heading + ": " + s
	}
	if n.Body != "" {
		s += "\n" + n.Body
	}
	return s
}

// Sink delivers notifications somewhere a user will see them.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// ChatTarget addresses a chat (and optional forum topic) on a messaging sink.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}
