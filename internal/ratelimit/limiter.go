// Package ratelimit implements the process-wide throttle guarding all
// outbound model calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum spacing between grants and a per-minute grant
// cap. Reaching the cap triggers a full one-minute cooldown and a counter
// reset; this is a conservative cool-down, not a precise sliding window.
//
// A single shared instance guards every outbound model call. The mutex is
// held across the waits so concurrent callers are granted slots one at a
// time, in acquisition order.
type Limiter struct {
	mu           sync.Mutex
	minInterval  time.Duration
	perMinuteCap int

	lastGrant   time.Time
	windowStart time.Time
	count       int

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given minimum inter-grant spacing and
// per-minute cap.
func New(minInterval time.Duration, perMinuteCap int) *Limiter {
	return &Limiter{
		minInterval:  minInterval,
		perMinuteCap: perMinuteCap,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Await blocks until it is safe to issue the next model call. It returns
// early only when ctx is cancelled.
func (l *Limiter) Await(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.count = 0
	}

	if l.count >= l.perMinuteCap {
		if err := l.sleep(ctx, time.Minute); err != nil {
			return err
		}
		now = l.now()
		l.windowStart = now
		l.count = 0
	}

	if !l.lastGrant.IsZero() {
		if wait := l.minInterval - now.Sub(l.lastGrant); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			now = l.now()
		}
	}

	l.lastGrant = now
	l.count++
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
