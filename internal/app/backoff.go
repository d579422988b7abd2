package app

import (
	"context"
	"math/rand"
	"time"
)

// Dial retry delays while a freshly started simulator binds its port.
const (
	DefaultBackoffInitial = 20 * time.Millisecond
	DefaultBackoffMax     = 500 * time.Millisecond
)

// backoff doubles its delay after every wait, up to max, with ±20% jitter.
type backoff struct {
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, ceiling time.Duration) *backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffMax
	}
	return &backoff{max: max(initial, ceiling), current: initial}
}

// Sleep waits for the current delay and then grows it. It returns ctx.Err()
// without growing if ctx ends first.
func (b *backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.jittered())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	b.current = min(2*b.current, b.max)
	return nil
}

func (b *backoff) jittered() time.Duration {
	j := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	return b.current + time.Duration(j)
}

// Current returns the next delay before jitter.
func (b *backoff) Current() time.Duration {
	return b.current
}
