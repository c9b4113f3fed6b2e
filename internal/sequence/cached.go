package sequence

import (
	"sync"
	"sync/atomic"

	"github.com/lucasew/seqcache/internal/frame"
)

// Cached is a fully loaded sequence. Slots whose file failed to load are nil.
type Cached struct {
	name     string
	frames   []*frame.Frame
	memory   int64
	failed   int
	released atomic.Bool

	mu        sync.Mutex
	pins      int
	releasing bool
}

// NewCached wraps already decoded frames. nil entries count as failed.
func NewCached(name string, frames []*frame.Frame) *Cached {
	c := &Cached{name: name, frames: frames}
	for _, f := range frames {
		if f == nil {
			c.failed++
			continue
		}
		c.memory += f.Size()
	}
	return c
}

func (c *Cached) Name() string {
	return c.name
}

// FrameCount is the number of slots, failed ones included.
func (c *Cached) FrameCount() int {
	return len(c.frames)
}

// Frame returns slot i, nil when it failed to load or is out of range.
func (c *Cached) Frame(i int) *frame.Frame {
	if i < 0 || i >= len(c.frames) {
		return nil
	}
	return c.frames[i]
}

// MemoryUsage is the sum of the raw pixel buffers of the loaded frames.
func (c *Cached) MemoryUsage() int64 {
	return c.memory
}

// FailedFrames is the number of nil slots.
func (c *Cached) FailedFrames() int {
	return c.failed
}

// IsValid reports whether the sequence has frames and was not released.
func (c *Cached) IsValid() bool {
	return c != nil && !c.released.Load() && len(c.frames) > 0
}

// Release frees every frame. While the sequence is pinned the frames stay
// alive and are freed by the last Unpin. It is safe to call more than once.
func (c *Cached) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.releasing || c.released.Load() {
		c.mu.Unlock()
		return
	}
	if c.pins > 0 {
		c.releasing = true
		c.mu.Unlock()
		return
	}
	c.released.Store(true)
	c.mu.Unlock()
	c.free()
}

// Pin keeps the frames alive until the matching Unpin. It reports false,
// without pinning, when the sequence is released or being released.
func (c *Cached) Pin() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.releasing || c.released.Load() {
		return false
	}
	c.pins++
	return true
}

// Unpin drops one pin taken by Pin.
func (c *Cached) Unpin() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.pins == 0 {
		c.mu.Unlock()
		return
	}
	c.pins--
	deferred := c.pins == 0 && c.releasing
	if deferred {
		c.released.Store(true)
	}
	c.mu.Unlock()
	if deferred {
		c.free()
	}
}

// Pinned reports whether someone holds a pin.
func (c *Cached) Pinned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pins > 0
}

func (c *Cached) free() {
	for _, f := range c.frames {
		f.Release()
	}
}
