package backoff

import (
	"context"
	"time"
)

// Backoff computes exponential restart delays for supervised tasks. Unlike
// a retry helper it has no attempt cap: a relay pump is restarted for as
// long as the process lives, because the physical link may recover at any
// time.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	current time.Duration
}

func New(initial, max time.Duration) *Backoff {
	return &Backoff{Initial: initial, Max: max, Multiplier: 2.0}
}

// Next returns the delay to wait before the next restart.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
		return b.current
	}
	next := time.Duration(float64(b.current) * b.Multiplier)
	if next > b.Max {
		next = b.Max
	}
	b.current = next
	return b.current
}

// Reset is called after a task has run healthily, so the next failure
// starts from the initial delay again.
func (b *Backoff) Reset() {
	b.current = 0
}

// Sleep waits for the next delay or until ctx is cancelled.
func (b *Backoff) Sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.Next()):
		return nil
	}
}
