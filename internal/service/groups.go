package service

import (
	"context"
	"errors"
	"strings"

	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

func (s *Service) Groups() []reminder.Group {
	return s.store.Groups()
}

// CreateGroup persists a new group.
func (s *Service) CreateGroup(ctx context.Context, name, color string) (reminder.Group, error) {
	if blank(name) {
		return reminder.Group{}, reminder.E(reminder.KindValidation, "create group", "", errors.New("name required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g := reminder.NewGroup(name, color, s.now())
	if err := s.store.AddGroup(g); err != nil {
		return reminder.Group{}, err
	}
	if err := s.persist(ctx); err != nil {
		return reminder.Group{}, err
	}
	s.log.Info("group created", logx.String("id", g.ID), logx.String("name", g.Name))
	s.publish(eventbus.GroupCreated, g.ID, nil)
	return g, nil
}

// DeleteGroup removes the group, every reminder in it and their jobs.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.FindGroup(id); !ok {
		return reminder.NotFound("group", id)
	}
	members := s.store.FindRemindersByGroup(id)
	for _, r := range members {
		if err := s.store.RemoveReminder(r.ID); err != nil && !errors.Is(err, reminder.ErrNotFound) {
			return err
		}
		s.reg.Remove(r.ID)
	}
	if err := s.store.RemoveGroup(id); err != nil {
		return err
	}
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.log.Info("group deleted", logx.String("id", id), logx.Int("reminders", len(members)))
	s.publish(eventbus.GroupDeleted, id, map[string]any{"reminders": len(members)})
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
