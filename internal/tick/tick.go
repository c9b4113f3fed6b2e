// Package tick provides the suspension points preload and playback use to
// hand control back to the host loop.
package tick

import (
	"context"
	"runtime"
	"time"
)

// Scheduler is the cooperative suspension primitive.
type Scheduler interface {
	// Yield gives up the rest of the current tick.
	Yield(ctx context.Context) error

	// Wait suspends for d. A non-positive d behaves like Yield.
	Wait(ctx context.Context, d time.Duration) error
}

// Realtime paces ticks against the wall clock.
type Realtime struct {
	interval time.Duration
}

// NewRealtime creates a wall-clock scheduler whose ticks last 1/fps seconds.
// With fps <= 0 a tick is a bare runtime.Gosched.
func NewRealtime(fps int) *Realtime {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &Realtime{interval: interval}
}

// Interval returns the tick length, zero when unpaced.
func (r *Realtime) Interval() time.Duration {
	return r.interval
}

func (r *Realtime) Yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.interval <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	return sleep(ctx, r.interval)
}

func (r *Realtime) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return r.Yield(ctx)
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
