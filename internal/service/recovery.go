package service

import (
	"context"

	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// RestoreReport summarizes one recovery pass.
type RestoreReport struct {
	Registered int `json:"registered"`
	Inactive   int `json:"inactive"`
	PastWindow int `json:"pastWindow"`
	Failed     int `json:"failed"`
}

// RestoreJobs rebuilds the registry from the store. Reminders that are not
// schedulable, or whose daily window already ended today, get no job unless
// windows re-arm daily. One bad reminder never stops the rest; a canceled
// ctx does, and the report covers what was handled before it.
func (s *Service) RestoreJobs(ctx context.Context) RestoreReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config()
	tod := reminder.Clock(s.now().In(cfg.Location))

	var rep RestoreReport
	for _, r := range s.store.Reminders() {
		if err := ctx.Err(); err != nil {
			s.log.Warn("restore interrupted", logx.Int("registered", rep.Registered), logx.Err(err))
			break
		}
		if !r.Schedulable() {
			s.reg.Remove(r.ID)
			rep.Inactive++
			continue
		}
		if !cfg.RearmWindowsDaily && r.Window().ReachedEnd(tod) {
			s.reg.Remove(r.ID)
			rep.PastWindow++
			s.log.Debug("restore skipped; window ended", logx.String("id", r.ID), logx.String("now", tod.String()), logx.String("end", *r.EndAt))
			continue
		}
		if err := s.reg.Add(r.ID, r.Cron(), s.bodies.Body(r.ID)); err != nil {
			rep.Failed++
			s.log.Warn("restore failed", logx.String("id", r.ID), logx.String("spec", r.Cron()), logx.Any("err", err))
			continue
		}
		rep.Registered++
	}
	s.log.Info("jobs restored",
		logx.Int("registered", rep.Registered),
		logx.Int("inactive", rep.Inactive),
		logx.Int("past_window", rep.PastWindow),
		logx.Int("failed", rep.Failed),
	)
	s.publish(eventbus.JobsRestored, "", map[string]any{"registered": rep.Registered, "failed": rep.Failed})
	return rep
}
