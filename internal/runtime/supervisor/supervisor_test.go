package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("supervisor did not stop")
	}
	return err
}

func TestGoFailureCancelsSiblings(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")
	s.Go0("loop", func(ctx context.Context) { <-ctx.Done() })
	s.Go("restore", func(context.Context) error { return boom })

	if err := waitDone(t, s); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	tasks := s.Tasks()
	if len(tasks) != 2 || tasks[0].Name != "loop" || tasks[1].Name != "restore" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].Running || tasks[1].LastError == "" {
		t.Fatalf("unexpected task state: %+v", tasks)
	}
}

func TestGoCanceledIsClean(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go("watch", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()
	if err := waitDone(t, s); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	s.Go0("bad", func(context.Context) { panic("kaboom") })
	if err := waitDone(t, s); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if got := s.Tasks()[0]; got.Panics != 1 || got.Running {
		t.Fatalf("task = %+v", got)
	}
	if s.Context().Err() != nil {
		t.Fatal("panic must not cancel without WithCancelOnError")
	}
}

func TestGoRestartUntilCleanExit(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	var runs atomic.Int32
	s.GoRestart("worker.0", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("flaky")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond), WithPublishFirstError(true))

	err := waitDone(t, s)
	if err == nil || err.Error() != "worker.0: flaky" {
		t.Fatalf("err = %v", err)
	}
	got := s.Tasks()[0]
	if runs.Load() != 3 || got.Starts != 3 || got.Restarts != 2 || got.Running {
		t.Fatalf("runs=%d task=%+v", runs.Load(), got)
	}
	if s.Context().Err() != nil {
		t.Fatal("restart failures must not cancel the supervisor")
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(context.Background())
	s.GoRestart("http.serve", func(context.Context) error { return errors.New("bind") },
		WithRestartBackoff(time.Hour, time.Hour))
	time.Sleep(20 * time.Millisecond)
	s.Cancel()
	if err := waitDone(t, s); err != nil {
		t.Fatalf("err = %v", err)
	}
	if got := s.Tasks()[0]; got.Starts != 1 || got.LastError == "" {
		t.Fatalf("task = %+v", got)
	}
}

func TestNilSupervisorHasNoTasks(t *testing.T) {
	t.Parallel()
	var s *Supervisor
	if s.Tasks() != nil {
		t.Fatal("expected nil")
	}
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	b := NewBackoff(100*time.Millisecond, 400*time.Millisecond)
	for i := 0; i < 10; i++ {
		if d := b.Next(); d > 600*time.Millisecond {
			t.Fatalf("step %d: %v exceeds cap plus jitter", i, d)
		}
	}
	b.Reset()
	if d := b.Next(); d > 150*time.Millisecond {
		t.Fatalf("after reset: %v", d)
	}
}
