package scheduler

import "sort"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	enabled := s.cfg.Enabled
	tz := s.cfg.Timezone
	loc := s.loc
	items := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		items = append(items, JobInfo{
			ID:      e.id,
			Spec:    e.spec,
			AddedAt: e.addedAt,
			Next:    e.next,
			Prev:    e.prev,
			Fires:   e.fires,
		})
	}
	s.mu.Unlock()

	if tz == "" && loc != nil {
		tz = loc.String()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	s.runMu.Lock()
	running := s.running
	s.runMu.Unlock()

	return Snapshot{
		Enabled:      enabled,
		Running:      running,
		Timezone:     tz,
		TickInterval: s.tickInterval(),
		Ticks:        s.ticks.Load(),
		SkippedTicks: s.skipped.Load(),
		Fired:        s.fired.Load(),
		Failures:     s.failures.Load(),
		Jobs:         items,
	}
}
