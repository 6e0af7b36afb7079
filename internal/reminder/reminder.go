package reminder

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Group is a named, colored bucket of reminders.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewGroup builds a group with a fresh id.
func NewGroup(name, color string, now time.Time) Group {
	return Group{
		ID:        NewID(),
		Name:      strings.TrimSpace(name),
		Color:     strings.TrimSpace(color),
		CreatedAt: now,
	}
}

// Reminder is the persisted reminder record.
//
// The three flags are kept as independent booleans so the JSON stays
// compatible with existing data files; use Status() to interpret them.
type Reminder struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Color           string     `json:"color"`
	GroupID         string     `json:"groupId"`
	CronExpression  *string    `json:"cronExpression,omitempty"`
	StartAt         *string    `json:"startAt,omitempty"`
	EndAt           *string    `json:"endAt,omitempty"`
	Description     *string    `json:"description,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	IsCancelled     bool       `json:"isCancelled"`
	IsDeleted       bool       `json:"isDeleted"`
	IsPaused        bool       `json:"isPaused"`
}

// Draft holds the caller-provided fields of a new reminder.
type Draft struct {
	Title          string
	Color          string
	GroupID        string
	CronExpression *string
	Description    *string
	StartAt        *string
	EndAt          *string
}

// Patch holds optional overwrites for an existing reminder. Nil means "keep".
type Patch struct {
	Title          *string
	Color          *string
	CronExpression *string
	Description    *string
	StartAt        *string
	EndAt          *string
}

// New builds an active reminder from a draft.
func New(d Draft, now time.Time) Reminder {
	created := now
	return Reminder{
		ID:             NewID(),
		Title:          strings.TrimSpace(d.Title),
		Color:          strings.TrimSpace(d.Color),
		GroupID:        strings.TrimSpace(d.GroupID),
		CronExpression: nonEmpty(d.CronExpression),
		Description:    d.Description,
		StartAt:        nonEmpty(d.StartAt),
		EndAt:          nonEmpty(d.EndAt),
		CreatedAt:      &created,
	}
}

// NewID returns a random opaque identifier.
func NewID() string { return uuid.NewString() }

// IsActive reports whether no cancel/delete/pause flag is set.
func (r Reminder) IsActive() bool {
	return !r.IsCancelled && !r.IsDeleted && !r.IsPaused
}

// Schedulable reports whether the reminder should own a registry job.
func (r Reminder) Schedulable() bool {
	return r.IsActive() && r.Cron() != ""
}

// Cron returns the cron expression or "".
func (r Reminder) Cron() string {
	if r.CronExpression == nil {
		return ""
	}
	return strings.TrimSpace(*r.CronExpression)
}

// Window returns the parsed daily active window.
func (r Reminder) Window() Window {
	return ParseWindow(deref(r.StartAt), deref(r.EndAt))
}

// Apply overwrites the fields set in p and reports whether anything that
// affects scheduling (cron, start, end) was provided.
func (r *Reminder) Apply(p Patch) (scheduleChanged bool) {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Color != nil {
		r.Color = strings.TrimSpace(*p.Color)
	}
	if p.Description != nil {
		r.Description = p.Description
	}
	if p.CronExpression != nil {
		r.CronExpression = nonEmpty(p.CronExpression)
		scheduleChanged = true
	}
	if p.StartAt != nil {
		r.StartAt = nonEmpty(p.StartAt)
		scheduleChanged = true
	}
	if p.EndAt != nil {
		r.EndAt = nonEmpty(p.EndAt)
		scheduleChanged = true
	}
	return scheduleChanged
}

// Clone returns a deep copy so callers can't alias stored pointers.
func (r Reminder) Clone() Reminder {
	cp := r
	cp.CronExpression = cloneStr(r.CronExpression)
	cp.StartAt = cloneStr(r.StartAt)
	cp.EndAt = cloneStr(r.EndAt)
	cp.Description = cloneStr(r.Description)
	cp.CreatedAt = cloneTime(r.CreatedAt)
	cp.LastTriggeredAt = cloneTime(r.LastTriggeredAt)
	return cp
}

// Ptr is a small helper for optional string fields.
func Ptr(s string) *string { return &s }

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
