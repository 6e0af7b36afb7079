package supervisor

import (
	"math/rand"
	"time"
)

// Backoff is a doubling delay capped at Max, with up to 50% jitter on top.
// It is not safe for concurrent use.
type Backoff struct {
	base, max, cur time.Duration
	rng            *rand.Rand
}

func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, cur: base, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Next returns the wait before the next attempt and doubles the step.
func (b *Backoff) Next() time.Duration {
	wait := b.cur + time.Duration(b.rng.Int63n(int64(b.cur/2)+1))
	if b.cur < b.max {
		b.cur = min(b.cur*2, b.max)
	}
	return wait
}

func (b *Backoff) Reset() { b.cur = b.base }

