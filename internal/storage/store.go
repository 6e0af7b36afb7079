package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// Store is the reminder/group collection shared by request handlers and job
// bodies. Reads return copies; nothing handed out aliases stored pointers.
type Store struct {
	log     logx.Logger
	backend Backend

	mu        sync.RWMutex
	groups    []reminder.Group
	reminders []reminder.Reminder

	// saveMu orders snapshot writes so the last save always carries the
	// newest state.
	saveMu sync.Mutex
}

func New(b Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if b == nil {
		b = NewMemory()
	}
	return &Store{log: log, backend: b}
}

// Load replaces the in-memory collection with the backend's snapshot.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		return reminder.E(reminder.KindDataAccess, "load snapshot", "", err)
	}
	s.mu.Lock()
	s.groups = append([]reminder.Group(nil), snap.Groups...)
	s.reminders = make([]reminder.Reminder, 0, len(snap.Reminders))
	for _, r := range snap.Reminders {
		s.reminders = append(s.reminders, r.Clone())
	}
	s.mu.Unlock()
	s.log.Info("snapshot loaded", logx.Int("groups", len(snap.Groups)), logx.Int("reminders", len(snap.Reminders)))
	return nil
}

// Save writes the current groups and reminders through the backend.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	snap := s.Snapshot()
	if err := s.backend.Save(ctx, snap); err != nil {
		return reminder.E(reminder.KindPersistence, "save snapshot", "", err)
	}
	return nil
}

// Snapshot returns a deep copy of the collection.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Groups: s.Groups(), Reminders: s.Reminders()}
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) Groups() []reminder.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]reminder.Group{}, s.groups...)
}

func (s *Store) FindGroup(id string) (reminder.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ID == id {
			return g, true
		}
	}
	return reminder.Group{}, false
}

func (s *Store) AddGroup(g reminder.Group) error {
	if strings.TrimSpace(g.ID) == "" {
		return reminder.E(reminder.KindValidation, "add group", "", errors.New("id required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.groups {
		if cur.ID == g.ID {
			return reminder.E(reminder.KindValidation, "add group", g.ID, errors.New("duplicate id"))
		}
	}
	s.groups = append(s.groups, g)
	return nil
}

func (s *Store) RemoveGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.groups {
		if g.ID == id {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return nil
		}
	}
	return reminder.NotFound("group", id)
}

func (s *Store) Reminders() []reminder.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reminder.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) FindReminder(id string) (reminder.Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.reminders[i].Clone(), true
	}
	return reminder.Reminder{}, false
}

func (s *Store) FindRemindersByGroup(groupID string) []reminder.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []reminder.Reminder{}
	for _, r := range s.reminders {
		if r.GroupID == groupID {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) AddReminder(r reminder.Reminder) error {
	if strings.TrimSpace(r.ID) == "" {
		return reminder.E(reminder.KindValidation, "add reminder", "", errors.New("id required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(r.ID) >= 0 {
		return reminder.E(reminder.KindValidation, "add reminder", r.ID, errors.New("duplicate id"))
	}
	s.reminders = append(s.reminders, r.Clone())
	return nil
}

// UpdateReminder overwrites the stored record with the same id.
func (s *Store) UpdateReminder(r reminder.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(r.ID)
	if i < 0 {
		return reminder.NotFound("reminder", r.ID)
	}
	s.reminders[i] = r.Clone()
	return nil
}

// MutateReminder applies fn to the stored record under the write lock and
// returns the result. If fn fails the record is left unchanged.
func (s *Store) MutateReminder(id string, fn func(r *reminder.Reminder) error) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return reminder.Reminder{}, reminder.NotFound("reminder", id)
	}
	cp := s.reminders[i].Clone()
	if err := fn(&cp); err != nil {
		return reminder.Reminder{}, err
	}
	s.reminders[i] = cp
	return cp.Clone(), nil
}

func (s *Store) RemoveReminder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return reminder.NotFound("reminder", id)
	}
	s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
	return nil
}

// RecordFire appends to the firing history.
func (s *Store) RecordFire(ctx context.Context, rec FireRecord) error {
	if err := s.backend.AppendFire(ctx, rec); err != nil {
		return reminder.E(reminder.KindPersistence, "record fire", rec.ReminderID, err)
	}
	return nil
}

// Fires returns up to limit history entries for reminderID, newest first.
// An empty reminderID returns entries for all reminders.
func (s *Store) Fires(ctx context.Context, reminderID string, limit int) ([]FireRecord, error) {
	out, err := s.backend.Fires(ctx, reminderID, limit)
	if err != nil {
		return nil, reminder.E(reminder.KindDataAccess, "read fires", reminderID, err)
	}
	return out, nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			return i
		}
	}
	return -1
}
