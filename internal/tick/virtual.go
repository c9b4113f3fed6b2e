package tick

import (
	"context"
	"sync"
	"time"
)

// EventKind tells a yield from a timed wait.
type EventKind int

const (
	YieldEvent EventKind = iota
	WaitEvent
)

// Event is one recorded suspension.
type Event struct {
	Kind     EventKind
	Duration time.Duration
	At       time.Duration
}

// Virtual is a Scheduler that never sleeps. Each Wait advances a virtual
// clock and every suspension is recorded, so tests can assert exactly where
// control was handed back.
type Virtual struct {
	mu     sync.Mutex
	now    time.Duration
	events []Event

	// Hook, when set, runs on every suspension after it is recorded.
	// Tests use it to observe state between batches or frames.
	Hook func(Event)
}

func NewVirtual() *Virtual {
	return &Virtual{}
}

func (v *Virtual) Yield(ctx context.Context) error {
	return v.record(ctx, Event{Kind: YieldEvent})
}

func (v *Virtual) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return v.Yield(ctx)
	}
	return v.record(ctx, Event{Kind: WaitEvent, Duration: d})
}

func (v *Virtual) record(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	v.now += ev.Duration
	ev.At = v.now
	v.events = append(v.events, ev)
	hook := v.Hook
	v.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return ctx.Err()
}

// Now returns the elapsed virtual time.
func (v *Virtual) Now() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Events returns a copy of every recorded suspension.
func (v *Virtual) Events() []Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Event(nil), v.events...)
}

// Count returns how many suspensions of kind were recorded.
func (v *Virtual) Count(kind EventKind) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, ev := range v.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears the clock and the recorded events.
func (v *Virtual) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = 0
	v.events = nil
}
