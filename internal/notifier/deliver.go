package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"remindd/internal/eventbus"
	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

// deliver sends n to every sink and reports the combined outcome.
func (s *Service) deliver(ctx context.Context, n kit.Notification) {
	s.mu.Lock()
	sinks, hook, cfg := s.sinks, s.hook, s.cfg
	s.mu.Unlock()

	res := Result{Notification: n}
	var errs []error
	for _, sk := range sinks {
		if err := s.sendWithRetry(ctx, cfg, sk, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
			continue
		}
		res.Delivered = append(res.Delivered, sk.Name())
	}
	res.Err = errors.Join(errs...)

	it := HistoryItem{At: time.Now(), ReminderID: n.ReminderID, Text: n.Text(), Sinks: res.Delivered}
	if res.Err != nil {
		it.Error = res.Err.Error()
		s.log.Warn("notification failed", logx.String("reminder", n.ReminderID), logx.Err(res.Err))
	}
	s.history.add(it)

	if hook != nil {
		hook(ctx, res)
	}
}

// sendWithRetry tries sk up to 1+RetryMax times, each attempt behind the
// shared rate limit and bounded by SendTimeout.
func (s *Service) sendWithRetry(ctx context.Context, cfg Config, sk kit.Sink, n kit.Notification) error {
	var err error
	for attempt := 1; ; attempt++ {
		if werr := s.limiter.Wait(ctx); werr != nil {
			return werr
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err = sk.Send(callCtx, n)
		cancel()
		if err == nil {
			s.publish(eventbus.NotifySent, NotificationEvent{ReminderID: n.ReminderID, Sink: sk.Name(), At: time.Now()})
			return nil
		}
		s.log.Debug("notify send failed", logx.String("sink", sk.Name()), logx.Int("attempt", attempt), logx.Err(err))
		if attempt > cfg.RetryMax {
			break
		}
		if !sleep(ctx, retryDelay(cfg, attempt)) {
			return ctx.Err()
		}
	}
	s.publish(eventbus.NotifyFailed, NotificationEvent{ReminderID: n.ReminderID, Sink: sk.Name(), At: time.Now(), Error: err.Error()})
	return err
}

// retryDelay is the wait after failed attempt n (from 1): RetryBase doubled
// per attempt up to RetryMaxDelay, scaled by a random 0.7 to 1.3.
func retryDelay(cfg Config, attempt int) time.Duration {
	base, ceiling := cfg.RetryBase, cfg.RetryMaxDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	d = time.Duration(float64(min(d, ceiling)) * (0.7 + rand.Float64()*0.6))
	return min(d, ceiling)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
