package eventbus

import (
	"sync"
	"testing"
)

func TestSubscribeFiltersByPrefix(t *testing.T) {
	t.Parallel()

	b := New()
	all, cancelAll := b.Subscribe(8)
	defer cancelAll()
	rem, cancelRem := b.Subscribe(8, ReminderPrefix)
	defer cancelRem()

	b.Publish(Event{Topic: ReminderCreated, Subject: "r1"})
	b.Publish(Event{Topic: JobFired, Subject: "r1"})
	b.Publish(Event{Topic: ReminderPrefix + "paused", Subject: "r1"})

	if len(all) != 3 {
		t.Fatalf("unfiltered subscriber got %d events", len(all))
	}
	if len(rem) != 2 {
		t.Fatalf("reminder subscriber got %d events", len(rem))
	}
	e := <-rem
	if e.Topic != ReminderCreated || e.Subject != "r1" || e.Time.IsZero() {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestFullSubscriberDropsAndCounts(t *testing.T) {
	t.Parallel()

	b := New()
	ch, cancel := b.Subscribe(1)
	defer cancel()
	for i := 0; i < 3; i++ {
		b.Publish(Event{Topic: NotifyQueued})
	}
	if len(ch) != 1 || b.Dropped() != 2 {
		t.Fatalf("buffered=%d dropped=%d", len(ch), b.Dropped())
	}
}

func TestCancelClosesOnceAndStopsDelivery(t *testing.T) {
	t.Parallel()

	b := New()
	ch, cancel := b.Subscribe(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(Event{Topic: JobFired})
			}
		}()
	}
	cancel()
	cancel()
	wg.Wait()

	for range ch {
	}
	b.Publish(Event{Topic: JobFired})
}
