package player

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lucasew/seqcache/internal/frame"
)

// Transition plays an entry sequence, runs some work while the screen is
// covered, then plays the exit sequence.
type Transition struct {
	Name  string
	Entry string
	Exit  string

	FrameRate float64

	// KeepLastFrame holds a copy of the entry's last frame on screen while
	// the work runs.
	KeepLastFrame bool

	// LoadingDelay is waited after the entry before the work starts.
	LoadingDelay time.Duration
}

// PlayTransition runs tr on surface. work may be nil. Errors from the entry,
// the work or the exit stop the transition and are returned wrapped.
func (p *Player) PlayTransition(ctx context.Context, tr Transition, surface Surface, tracker *frame.Tracker, work func(ctx context.Context) error) error {
	var freeze *frame.Frame
	defer func() { freeze.Release() }()

	var onLast func()
	if tr.KeepLastFrame {
		onLast = func() {
			seq, ok := p.lib.Acquire(tr.Entry)
			if !ok {
				return
			}
			freeze = FreezeLast(seq, tracker)
			seq.Unpin()
			if freeze != nil {
				surface.SetImage(freeze)
			}
		}
	}

	slog.Debug("Transition entry", "transition", tr.Name, "sequence", tr.Entry)
	if err := p.Play(ctx, tr.Entry, tr.FrameRate, surface, onLast); err != nil {
		return fmt.Errorf("transition %s entry: %w", tr.Name, err)
	}

	if tr.LoadingDelay > 0 {
		if err := p.sched.Wait(ctx, tr.LoadingDelay); err != nil {
			return err
		}
	}
	if work != nil {
		if err := work(ctx); err != nil {
			return fmt.Errorf("transition %s: %w", tr.Name, err)
		}
	}

	slog.Debug("Transition exit", "transition", tr.Name, "sequence", tr.Exit)
	if err := p.Play(ctx, tr.Exit, tr.FrameRate, surface, nil); err != nil {
		return fmt.Errorf("transition %s exit: %w", tr.Name, err)
	}
	return nil
}
