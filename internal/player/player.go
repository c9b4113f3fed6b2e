// Package player shows cached sequences frame by frame at a fixed rate.
package player

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/sequence"
	"github.com/lucasew/seqcache/internal/tick"
)

var (
	ErrNoSurface     = errors.New("no display surface")
	ErrEmptyName     = errors.New("empty sequence name")
	ErrNotCached     = errors.New("sequence not cached")
	ErrEmptySequence = errors.New("sequence has no frames")
)

// Surface is where frames are shown.
type Surface interface {
	SetImage(f *frame.Frame)
	SetActive(active bool)
}

// Library resolves sequence names to loaded sequences. Both the directory
// cache and the bundle provider satisfy it. Acquire pins the sequence; the
// caller unpins it when done so unloading cannot free frames in use.
type Library interface {
	Acquire(name string) (*sequence.Cached, bool)
}

type Player struct {
	lib   Library
	sched tick.Scheduler
}

func New(lib Library, sched tick.Scheduler) *Player {
	return &Player{lib: lib, sched: sched}
}

// Play shows every frame of name on surface, waiting 1/frameRate seconds
// after each one. With frameRate <= 0 it only yields between frames.
//
// If onLastFrame is set, it runs right after the final frame is shown and
// Play returns without waiting and without deactivating the surface.
// Otherwise the surface is deactivated after the final wait.
//
// Missing surfaces, names and sequences are caller errors: they are logged
// and returned without touching the surface. Only a nil interface counts as
// a missing surface; a typed nil pointer passes the check and panics on
// first use.
//
// The sequence stays pinned while it plays, so a concurrent Unload or
// eviction defers freeing its frames until Play returns.
func (p *Player) Play(ctx context.Context, name string, frameRate float64, surface Surface, onLastFrame func()) error {
	seq, err := p.resolve(name, surface)
	if err != nil {
		return err
	}
	defer seq.Unpin()
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := frameDuration(frameRate)
	last := seq.FrameCount() - 1

	surface.SetActive(true)
	for i := 0; i <= last; i++ {
		f := seq.Frame(i)
		if f == nil || f.Released() {
			slog.Warn("Skipping missing frame", "sequence", name, "index", i)
			continue
		}
		surface.SetImage(f)

		if i == last && onLastFrame != nil {
			onLastFrame()
			return nil
		}
		if err := p.sched.Wait(ctx, delay); err != nil {
			return err
		}
	}

	// the final slot was missing
	if onLastFrame != nil {
		onLastFrame()
		return nil
	}
	surface.SetActive(false)
	return nil
}

func (p *Player) resolve(name string, surface Surface) (*sequence.Cached, error) {
	if surface == nil {
		errutil.ReportError(ErrNoSurface, "Cannot play sequence", "sequence", name)
		return nil, ErrNoSurface
	}
	if name == "" {
		errutil.ReportError(ErrEmptyName, "Cannot play sequence")
		return nil, ErrEmptyName
	}
	seq, ok := p.lib.Acquire(name)
	if !ok {
		errutil.ReportError(ErrNotCached, "Cannot play sequence", "sequence", name)
		return nil, ErrNotCached
	}
	if !seq.IsValid() {
		seq.Unpin()
		errutil.ReportError(ErrEmptySequence, "Cannot play sequence", "sequence", name)
		return nil, ErrEmptySequence
	}
	return seq, nil
}

func frameDuration(frameRate float64) time.Duration {
	if frameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / frameRate)
}

// FreezeLast copies the last loaded frame of seq so it can stay on screen
// after seq is unloaded. It returns nil when seq has no loaded frame.
func FreezeLast(seq *sequence.Cached, tracker *frame.Tracker) *frame.Frame {
	if !seq.IsValid() {
		return nil
	}
	for i := seq.FrameCount() - 1; i >= 0; i-- {
		if f := seq.Frame(i); f != nil && !f.Released() {
			return frame.Clone(f, tracker)
		}
	}
	return nil
}
