package storage

import (
	"context"
	"errors"
	"time"

	"remindd/internal/reminder"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot file, rewritten atomically on every save
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory": nothing survives a restart; for tests and dry runs
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is the full persisted state. The JSON shape is the data file
// format: {"groups": [...], "reminders": [...]}.
type Snapshot struct {
	Groups    []reminder.Group    `json:"groups"`
	Reminders []reminder.Reminder `json:"reminders"`
}

// FireRecord is one entry of the firing history.
// Keep it compact and schema-stable.
type FireRecord struct {
	ReminderID string    `json:"reminderId"`
	Title      string    `json:"title"`
	At         time.Time `json:"at"`
	Delivered  bool      `json:"delivered"`
	Error      string    `json:"error,omitempty"`
}

// Backend persists whole snapshots plus an append-only firing history.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	AppendFire(ctx context.Context, rec FireRecord) error
	Fires(ctx context.Context, reminderID string, limit int) ([]FireRecord, error)
	Close() error
}
