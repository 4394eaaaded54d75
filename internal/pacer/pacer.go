// Package pacer enforces minimum spacing between calls to rate-limited
// external dependencies. The providers we call apply hard per-second caps,
// so strict spacing beats a token bucket here: there is deliberately no
// burst allowance.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out calls per channel key. Distinct keys never interfere, so
// one slow dependency does not throttle another. Safe for concurrent use.
type Pacer struct {
	minInterval time.Duration

	mu   sync.Mutex
	next map[string]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Pacer with the given minimum interval between calls on the
// same channel.
func New(minInterval time.Duration) *Pacer {
	return &Pacer{
		minInterval: minInterval,
		next:        make(map[string]time.Time),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous Wait returned for the same channel. The first call for a fresh
// channel returns immediately. Each caller reserves its slot before sleeping,
// so concurrent waiters on one channel serialize rather than piling onto the
// same deadline. Returns ctx.Err() if the context is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context, channel string) error {
	p.mu.Lock()
	now := p.now()
	at := now
	if next, seen := p.next[channel]; seen && next.After(at) {
		at = next
	}
	p.next[channel] = at.Add(p.minInterval)
	p.mu.Unlock()

	if wait := at.Sub(now); wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
