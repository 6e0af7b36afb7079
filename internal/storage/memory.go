package storage

import (
	"context"
	"sync"
)

// Memory is a Backend that keeps the last saved snapshot in process.
type Memory struct {
	mu    sync.Mutex
	snap  Snapshot
	fires []FireRecord
	saves int
}

func NewMemory() *Memory { return &Memory{} }

// NewMemoryWith returns a Memory backend preloaded with snap.
func NewMemoryWith(snap Snapshot) *Memory {
	return &Memory{snap: cloneSnapshot(snap)}
}

func (m *Memory) Load(ctx context.Context) (Snapshot, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snap), nil
}

func (m *Memory) Save(ctx context.Context, snap Snapshot) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = cloneSnapshot(snap)
	m.saves++
	return nil
}

// Saves returns how many snapshots were written.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) AppendFire(ctx context.Context, rec FireRecord) error {
	_ = ctx
	m.mu.Lock()
	m.fires = append(m.fires, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Fires(ctx context.Context, reminderID string, limit int) ([]FireRecord, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.fires, reminderID, limit), nil
}

func (m *Memory) Close() error { return nil }

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{}
	out.Groups = append(out.Groups, s.Groups...)
	for _, r := range s.Reminders {
		out.Reminders = append(out.Reminders, r.Clone())
	}
	return out
}

func newestFirst(all []FireRecord, reminderID string, limit int) []FireRecord {
	out := []FireRecord{}
	for i := len(all) - 1; i >= 0; i-- {
		if reminderID != "" && all[i].ReminderID != reminderID {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
