package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"remindd/internal/eventbus"
	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

type fakeSink struct {
	name  string
	mu    sync.Mutex
	fails int // fail this many sends before succeeding; -1 fails forever
	sent  []kit.Notification
	calls int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(ctx context.Context, n kit.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails < 0 || f.calls <= f.fails {
		return errors.New("transient")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSink) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 1000, RetryMax: 2, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond}
}

func startService(t *testing.T, cfg Config, sinks ...kit.Sink) (*Service, <-chan Result) {
	t.Helper()
	s := New(cfg, sinks, logx.Nop(), eventbus.New())
	results := make(chan Result, 8)
	s.SetResultHook(func(_ context.Context, r Result) { results <- r })
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, results
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery result")
		return Result{}
	}
}

func TestNotifyFansOutWithRetry(t *testing.T) {
	t.Parallel()
	flaky := &fakeSink{name: "flaky", fails: 2}
	steady := &fakeSink{name: "steady"}
	s, results := startService(t, testConfig(), flaky, steady)

	if err := s.Notify(context.Background(), kit.Notification{ReminderID: "r1", Heading: "Reminder", Title: "Standup"}); err != nil {
		t.Fatal(err)
	}
	res := waitResult(t, results)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Delivered) != 2 || flaky.Calls() != 3 {
		t.Fatalf("delivered=%v flaky calls=%d", res.Delivered, flaky.Calls())
	}
	hist := s.Snapshot()
	if len(hist) != 1 || hist[0].Text != "Reminder: Standup" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestNotifyReportsPartialFailure(t *testing.T) {
	t.Parallel()
	broken := &fakeSink{name: "broken", fails: -1}
	ok := &fakeSink{name: "ok"}
	svc, res := startService(t, testConfig(), broken, ok)
	if err := svc.Notify(context.Background(), kit.Notification{ReminderID: "r2", Title: "x"}); err != nil {
		t.Fatal(err)
	}
	r := waitResult(t, res)
	if r.Err == nil || len(r.Delivered) != 1 || r.Delivered[0] != "ok" {
		t.Fatalf("result = %+v", r)
	}
}

func TestNotifyRejections(t *testing.T) {
	t.Parallel()
	disabled := New(Config{Enabled: false}, []kit.Sink{&fakeSink{name: "a"}}, logx.Nop(), nil)
	if err := disabled.Notify(context.Background(), kit.Notification{Title: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled err = %v", err)
	}

	noSinks := New(testConfig(), nil, logx.Nop(), nil)
	if err := noSinks.Notify(context.Background(), kit.Notification{Title: "x"}); !errors.Is(err, ErrNoSinks) {
		t.Fatalf("no sinks err = %v", err)
	}

	notStarted := New(testConfig(), []kit.Sink{&fakeSink{name: "a"}}, logx.Nop(), nil)
	if err := notStarted.Notify(context.Background(), kit.Notification{Title: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("not started err = %v", err)
	}
}

func TestDedupDropsOnlySameFiring(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.DedupWindow = time.Minute
	sink := &fakeSink{name: "a"}
	s, results := startService(t, cfg, sink)

	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		at      time.Time
		deliver bool
	}{
		{name: "first", at: at.Add(100 * time.Millisecond), deliver: true},
		{name: "same second", at: at.Add(800 * time.Millisecond), deliver: false},
		{name: "next second", at: at.Add(time.Second), deliver: true},
		{name: "next minute", at: at.Add(time.Minute), deliver: true},
		{name: "other reminder", at: at.Add(100 * time.Millisecond), deliver: true},
	}
	for _, tt := range tests {
		id := "r1"
		if tt.name == "other reminder" {
			id = "r2"
		}
		if err := s.Notify(context.Background(), kit.Notification{ReminderID: id, Title: "x", At: tt.at}); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !tt.deliver {
			continue
		}
		if r := waitResult(t, results); r.Notification.ReminderID != id || !r.Notification.At.Equal(tt.at) {
			t.Fatalf("%s: delivered %+v", tt.name, r.Notification)
		}
	}
	select {
	case r := <-results:
		t.Fatalf("duplicate delivered: %+v", r.Notification)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 8; attempt++ {
		d := retryDelay(cfg, attempt)
		if d <= 0 || d > time.Second {
			t.Fatalf("attempt %d delay %s out of bounds", attempt, d)
		}
	}
	if d := retryDelay(cfg, 1); d < 70*time.Millisecond || d > 130*time.Millisecond {
		t.Fatalf("first delay %s outside jitter range", d)
	}
}

func TestHistoryKeepsNewestOldestFirst(t *testing.T) {
	t.Parallel()
	var h historyRing
	for i := 0; i < historyCap+5; i++ {
		h.add(HistoryItem{ReminderID: fmt.Sprint(i)})
	}
	got := h.snapshot()
	if len(got) != historyCap {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ReminderID != "5" || got[historyCap-1].ReminderID != fmt.Sprint(historyCap+4) {
		t.Fatalf("first=%s last=%s", got[0].ReminderID, got[historyCap-1].ReminderID)
	}
}

func TestStopDrainsAndRestarts(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{name: "a"}
	s, results := startService(t, testConfig(), sink)

	if err := s.Notify(context.Background(), kit.Notification{ReminderID: "r1", Title: "one"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if r := waitResult(t, results); r.Err != nil {
		t.Fatalf("queued notification must drain: %+v", r)
	}
	if s.Tasks() != nil {
		t.Fatal("stopped notifier reports no tasks")
	}
	if err := s.Notify(context.Background(), kit.Notification{ReminderID: "r2"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("after stop err = %v", err)
	}

	s.Start(context.Background())
	if err := s.Notify(context.Background(), kit.Notification{ReminderID: "r3", Title: "three"}); err != nil {
		t.Fatalf("after restart: %v", err)
	}
	if r := waitResult(t, results); r.Notification.ReminderID != "r3" {
		t.Fatalf("result = %+v", r)
	}
	if got := len(s.Snapshot()); got != 2 {
		t.Fatalf("history len = %d", got)
	}
}
