package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"remindd/internal/eventbus"
	logx "remindd/pkg/logx"
)

const DefaultTickInterval = 500 * time.Millisecond

// Config controls the registry's tick loop.
type Config struct {
	Enabled      bool
	TickInterval time.Duration
	Timezone     string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local
}

// Job is the body run when a registered schedule comes due.
type Job func(ctx context.Context) error

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the wall clock used by Tick.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBus publishes job lifecycle events.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

type entry struct {
	id      string
	spec    string
	sched   cron.Schedule
	job     Job
	addedAt time.Time
	next    time.Time
	prev    time.Time
	fires   uint64
}

type dueJob struct {
	id  string
	job Job
}

// Service is the job registry. It maps a reminder id to a parsed schedule
// and owns the loop that ticks them.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus
	now func() time.Time

	entries map[string]*entry

	// tickMu serializes ticks; a tick that finds it held is skipped.
	tickMu sync.Mutex
	wake   chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	ticks    atomic.Uint64
	skipped  atomic.Uint64
	fired    atomic.Uint64
	failures atomic.Uint64

	// Failure warning throttling: key is job id.
	errMu       sync.Mutex
	lastErrWarn map[string]time.Time
}

// JobInfo describes one registered job.
type JobInfo struct {
	ID      string    `json:"id"`
	Spec    string    `json:"spec"`
	AddedAt time.Time `json:"addedAt"`
	Next    time.Time `json:"next"`
	Prev    time.Time `json:"prev"`
	Fires   uint64    `json:"fires"`
}

// Snapshot is a point-in-time view of the registry.
type Snapshot struct {
	Enabled      bool          `json:"enabled"`
	Running      bool          `json:"running"`
	Timezone     string        `json:"timezone"`
	TickInterval time.Duration `json:"tickInterval"`
	Ticks        uint64        `json:"ticks"`
	SkippedTicks uint64        `json:"skippedTicks"`
	Fired        uint64        `json:"fired"`
	Failures     uint64        `json:"failures"`
	Jobs         []JobInfo     `json:"jobs"`
}
