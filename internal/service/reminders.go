package service

import (
	"context"
	"errors"

	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	"remindd/internal/storage"
	logx "remindd/pkg/logx"
)

func (s *Service) Reminders() []reminder.Reminder {
	return s.store.Reminders()
}

func (s *Service) Reminder(id string) (reminder.Reminder, error) {
	r, ok := s.store.FindReminder(id)
	if !ok {
		return reminder.Reminder{}, reminder.NotFound("reminder", id)
	}
	return r, nil
}

// RemindersByGroup lists the reminders filed under groupID. An unknown or
// deleted group has none.
func (s *Service) RemindersByGroup(groupID string) []reminder.Reminder {
	return s.store.FindRemindersByGroup(groupID)
}

// Fires returns the firing history of a reminder, newest first.
func (s *Service) Fires(ctx context.Context, id string, limit int) ([]storage.FireRecord, error) {
	if _, ok := s.store.FindReminder(id); !ok {
		return nil, reminder.NotFound("reminder", id)
	}
	return s.store.Fires(ctx, id, limit)
}

// CreateReminder stores a new active reminder and registers its job when it
// has a schedule. The schedule is stored in normalized cron form.
func (s *Service) CreateReminder(ctx context.Context, d reminder.Draft) (reminder.Reminder, error) {
	if blank(d.Title) {
		return reminder.Reminder{}, reminder.E(reminder.KindValidation, "create reminder", "", errors.New("title required"))
	}
	expr, err := normalizeSchedule(d.CronExpression)
	if err != nil {
		return reminder.Reminder{}, err
	}
	d.CronExpression = expr

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.FindGroup(d.GroupID); !ok {
		return reminder.Reminder{}, reminder.NotFound("group", d.GroupID)
	}
	r := reminder.New(d, s.now())
	if err := s.store.AddReminder(r); err != nil {
		return reminder.Reminder{}, err
	}
	s.syncJob(r, true)
	if err := s.persist(ctx); err != nil {
		return reminder.Reminder{}, err
	}
	s.log.Info("reminder created", logx.String("id", r.ID), logx.String("title", r.Title), logx.String("cron", r.Cron()))
	s.publish(eventbus.ReminderCreated, r.ID, nil)
	return r, nil
}

// UpdateReminder overwrites the provided fields. A change to the schedule or
// window replaces the job; cosmetic edits leave it alone.
func (s *Service) UpdateReminder(ctx context.Context, id string, p reminder.Patch) (reminder.Reminder, error) {
	if p.Title != nil && blank(*p.Title) {
		return reminder.Reminder{}, reminder.E(reminder.KindValidation, "update reminder", id, errors.New("title must not be empty"))
	}
	expr, err := normalizeSchedule(p.CronExpression)
	if err != nil {
		return reminder.Reminder{}, err
	}
	p.CronExpression = expr

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	r, err := s.store.MutateReminder(id, func(r *reminder.Reminder) error {
		changed = r.Apply(p)
		return nil
	})
	if err != nil {
		return reminder.Reminder{}, err
	}
	if changed {
		s.reg.Remove(id)
		s.syncJob(r, true)
	} else {
		s.syncJob(r, false)
	}
	if err := s.persist(ctx); err != nil {
		return reminder.Reminder{}, err
	}
	s.log.Info("reminder updated", logx.String("id", id), logx.Bool("schedule_changed", changed))
	s.publish(eventbus.ReminderUpdated, id, map[string]any{"scheduleChanged": changed})
	return r, nil
}

func (s *Service) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, reminder.StatusPaused)
}

func (s *Service) Resume(ctx context.Context, id string) error {
	return s.transition(ctx, id, reminder.StatusActive)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, reminder.StatusCancelled)
}

// Delete soft-deletes: the record stays visible with isDeleted set.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.transition(ctx, id, reminder.StatusDeleted)
}

// Purge removes the record from the store entirely.
func (s *Service) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.RemoveReminder(id); err != nil {
		return err
	}
	s.reg.Remove(id)
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.log.Info("reminder purged", logx.String("id", id))
	s.publish(eventbus.ReminderPurged, id, nil)
	return nil
}

func (s *Service) transition(ctx context.Context, id string, target reminder.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	r, err := s.store.MutateReminder(id, func(r *reminder.Reminder) error {
		c, err := r.Transition(target)
		changed = c
		return err
	})
	if err != nil {
		return err
	}
	s.syncJob(r, false)
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.log.Info("reminder state changed", logx.String("id", id), logx.String("status", target.String()), logx.Bool("changed", changed))
	s.publish(eventbus.ReminderPrefix+target.String(), id, map[string]any{"changed": changed})
	return nil
}
