package scheduler

import (
	"time"

	logx "remindd/pkg/logx"
)

const errorWarnThrottle = 5 * time.Second

// reportJobError logs a failed job body. A job that fails every tick would
// flood the log, so warnings per id are throttled.
func (s *Service) reportJobError(id string, err error) {
	if err == nil {
		return
	}
	now := time.Now()
	s.errMu.Lock()
	last := s.lastErrWarn[id]
	if !last.IsZero() && now.Sub(last) < errorWarnThrottle {
		s.errMu.Unlock()
		return
	}
	s.lastErrWarn[id] = now
	s.errMu.Unlock()

	s.log.Warn("job failed", logx.String("id", id), logx.Any("err", err))
}
