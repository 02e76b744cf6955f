package fetch

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a fixed minimum gap between consecutive calls to Wait.
type Throttle struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Wait blocks until interval has elapsed since the previous call, or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.interval - time.Since(t.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.last = time.Now()
	return nil
}
