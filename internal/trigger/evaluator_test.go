package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindd/internal/reminder"
	"remindd/internal/storage"
	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got []kit.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n kit.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func at(hh, mm int) time.Time {
	return time.Date(2024, 6, 3, hh, mm, 0, 0, time.UTC)
}

func TestDecideWindow(t *testing.T) {
	t.Parallel()
	r := reminder.Reminder{ID: "r", StartAt: reminder.Ptr("09:00"), EndAt: reminder.Ptr("17:00"), CronExpression: reminder.Ptr("* * * * *")}
	tests := []struct {
		name string
		r    reminder.Reminder
		now  time.Time
		want Decision
	}{
		{name: "inside window", r: r, now: at(12, 0), want: Fire},
		{name: "before start", r: r, now: at(8, 0), want: SkipNotStarted},
		{name: "after end", r: r, now: at(18, 0), want: SkipEnded},
		{name: "at start", r: r, now: at(9, 0), want: Fire},
		{name: "at end minute", r: r, now: time.Date(2024, 6, 3, 17, 0, 59, 0, time.UTC), want: Fire},
		{name: "malformed bounds ignored", r: reminder.Reminder{StartAt: reminder.Ptr("soon"), EndAt: reminder.Ptr("99:99")}, now: at(3, 0), want: Fire},
		{name: "no window", r: reminder.Reminder{}, now: at(23, 59), want: Fire},
		{name: "paused", r: reminder.Reminder{IsPaused: true}, now: at(12, 0), want: SkipInactive},
		{name: "cancelled", r: reminder.Reminder{IsCancelled: true}, now: at(12, 0), want: SkipInactive},
		{name: "deleted", r: reminder.Reminder{IsDeleted: true}, now: at(12, 0), want: SkipInactive},
		// Overnight windows never fire: time-of-day is compared without wrapping.
		{name: "overnight", r: reminder.Reminder{StartAt: reminder.Ptr("22:00"), EndAt: reminder.Ptr("06:00")}, now: at(23, 0), want: SkipEnded},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Decide(tt.r, tt.now); got != tt.want {
				t.Fatalf("Decide = %s, want %s", got, tt.want)
			}
		})
	}
}

func newFixture(t *testing.T, r reminder.Reminder) (*storage.Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemoryWith(storage.Snapshot{
		Groups:    []reminder.Group{{ID: "g1", Name: "Work"}},
		Reminders: []reminder.Reminder{r},
	})
	st := storage.New(mem, logx.Nop())
	if err := st.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return st, mem
}

func TestRunFiresAndStampsLastTriggered(t *testing.T) {
	t.Parallel()
	r := reminder.Reminder{ID: "r1", Title: "Standup", GroupID: "g1", CronExpression: reminder.Ptr("* * * * *"), Description: reminder.Ptr("room 4")}
	st, mem := newFixture(t, r)
	n := &recordingNotifier{}
	now := at(9, 0)
	ev := New(st, n, logx.Nop(), WithClock(func() time.Time { return now }), WithLocation(time.UTC))

	if err := ev.Body("r1")(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(n.got) != 1 || n.got[0].Title != "Standup" || n.got[0].Heading != DefaultHeading || n.got[0].Body != "room 4" {
		t.Fatalf("notifications = %+v", n.got)
	}
	got, _ := st.FindReminder("r1")
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(now) {
		t.Fatalf("lastTriggeredAt = %v", got.LastTriggeredAt)
	}
	if mem.Saves() != 1 {
		t.Fatalf("saves = %d, want 1", mem.Saves())
	}
}

func TestRunSwallowsNotifierFailure(t *testing.T) {
	t.Parallel()
	r := reminder.Reminder{ID: "r1", Title: "Standup", GroupID: "g1", CronExpression: reminder.Ptr("* * * * *")}
	st, mem := newFixture(t, r)
	n := &recordingNotifier{err: errors.New("queue full")}
	ev := New(st, n, logx.Nop(), WithClock(func() time.Time { return at(9, 0) }))

	d, err := ev.Run(context.Background(), "r1")
	if err != nil || d != Fire {
		t.Fatalf("Run = %s, %v", d, err)
	}
	if got, _ := st.FindReminder("r1"); got.LastTriggeredAt == nil {
		t.Fatal("lastTriggeredAt must be set even when the notification fails")
	}
	fires, _ := mem.Fires(context.Background(), "r1", 0)
	if len(fires) != 1 || fires[0].Delivered || fires[0].Error == "" {
		t.Fatalf("fire history = %+v", fires)
	}
}

func TestRunReadsLiveState(t *testing.T) {
	t.Parallel()
	r := reminder.Reminder{ID: "r1", Title: "Standup", GroupID: "g1", CronExpression: reminder.Ptr("* * * * *")}
	st, mem := newFixture(t, r)
	n := &recordingNotifier{}
	ev := New(st, n, logx.Nop(), WithClock(func() time.Time { return at(9, 0) }))
	body := ev.Body("r1")

	// Paused after the body was built.
	if _, err := st.MutateReminder("r1", func(r *reminder.Reminder) error { r.IsPaused = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if err := body(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(n.got) != 0 || mem.Saves() != 0 {
		t.Fatal("paused reminder fired")
	}

	_ = st.RemoveReminder("r1")
	if d, err := ev.Run(context.Background(), "r1"); d != SkipMissing || err != nil {
		t.Fatalf("missing reminder: %s, %v", d, err)
	}
}
