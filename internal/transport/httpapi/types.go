package httpapi

import (
	"context"

	"remindd/internal/notifier"
	"remindd/internal/reminder"
	rtsup "remindd/internal/runtime/supervisor"
	"remindd/internal/storage"
	"remindd/internal/task/scheduler"
)

// Coordinator is the subset of the scheduling coordinator the API serves.
type Coordinator interface {
	Groups() []reminder.Group
	CreateGroup(ctx context.Context, name, color string) (reminder.Group, error)
	DeleteGroup(ctx context.Context, id string) error

	Reminders() []reminder.Reminder
	Reminder(id string) (reminder.Reminder, error)
	RemindersByGroup(groupID string) []reminder.Reminder
	CreateReminder(ctx context.Context, d reminder.Draft) (reminder.Reminder, error)
	UpdateReminder(ctx context.Context, id string, p reminder.Patch) (reminder.Reminder, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
	Fires(ctx context.Context, id string, limit int) ([]storage.FireRecord, error)

	Jobs() []scheduler.JobInfo
	HasJob(id string) bool
}

// Runtime exposes the state of the daemon's supervised loops.
type Runtime interface {
	Tasks() []rtsup.TaskState
}

// History exposes recent notification outcomes.
type History interface {
	Snapshot() []notifier.HistoryItem
}

type CreateGroupRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type CreateReminderRequest struct {
	Title          string  `json:"title" binding:"required"`
	Color          string  `json:"color"`
	GroupID        string  `json:"groupId" binding:"required"`
	CronExpression *string `json:"cronExpression"`
	Description    *string `json:"description"`
	StartAt        *string `json:"startAt"`
	EndAt          *string `json:"endAt"`
}

func (r CreateReminderRequest) draft() reminder.Draft {
	return reminder.Draft{
		Title:          r.Title,
		Color:          r.Color,
		GroupID:        r.GroupID,
		CronExpression: r.CronExpression,
		Description:    r.Description,
		StartAt:        r.StartAt,
		EndAt:          r.EndAt,
	}
}

// UpdateReminderRequest overwrites only the fields present in the body.
type UpdateReminderRequest struct {
	Title          *string `json:"title"`
	Color          *string `json:"color"`
	CronExpression *string `json:"cronExpression"`
	Description    *string `json:"description"`
	StartAt        *string `json:"startAt"`
	EndAt          *string `json:"endAt"`
}

func (r UpdateReminderRequest) patch() reminder.Patch {
	return reminder.Patch{
		Title:          r.Title,
		Color:          r.Color,
		CronExpression: r.CronExpression,
		Description:    r.Description,
		StartAt:        r.StartAt,
		EndAt:          r.EndAt,
	}
}

// ReminderResponse is a reminder plus its derived state.
type ReminderResponse struct {
	reminder.Reminder
	Status    string `json:"status"`
	Scheduled bool   `json:"scheduled"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
