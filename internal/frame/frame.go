// Package frame decodes still images into owned, releasable frames and keeps
// count of how many decoded frames are alive.
package frame

import (
	"image"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Sprite is the displayable wrapper around a decoded frame: the region of the
// image to show and its pivot, centered by default.
type Sprite struct {
	Name   string
	Rect   image.Rectangle
	PivotX float64
	PivotY float64
}

// Frame owns one decoded RGBA image.
type Frame struct {
	Name   string
	Image  *image.RGBA
	Sprite Sprite

	size     int64
	tracker  *Tracker
	released atomic.Bool
}

func newFrame(name string, img *image.RGBA, tracker *Tracker) *Frame {
	f := &Frame{
		Name:  name,
		Image: img,
		Sprite: Sprite{
			Name:   name,
			Rect:   img.Bounds(),
			PivotX: 0.5,
			PivotY: 0.5,
		},
		size:    int64(len(img.Pix)),
		tracker: tracker,
	}
	tracker.acquire(f.size)
	return f
}

// Size returns the raw pixel buffer size in bytes.
func (f *Frame) Size() int64 {
	if f == nil {
		return 0
	}
	return f.size
}

// Released reports whether Release was called.
func (f *Frame) Released() bool {
	return f == nil || f.released.Load()
}

// Release drops the pixel buffer. Calling it more than once is a no-op.
func (f *Frame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	f.Image = nil
	f.tracker.release(f.size)
}

// LoadResult is the outcome of loading one frame file. Failed loads never
// carry a frame.
type LoadResult struct {
	OK    bool
	Frame *Frame
}

// Tracker counts live frames and their bytes. A nil Tracker is valid and
// counts nothing.
type Tracker struct {
	live  atomic.Int64
	bytes atomic.Int64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) acquire(size int64) {
	if t == nil {
		return
	}
	t.live.Add(1)
	t.bytes.Add(size)
}

func (t *Tracker) release(size int64) {
	if t == nil {
		return
	}
	t.live.Add(-1)
	t.bytes.Add(-size)
}

// Live returns the number of decoded frames not yet released.
func (t *Tracker) Live() int64 {
	if t == nil {
		return 0
	}
	return t.live.Load()
}

// Bytes returns the pixel bytes held by live frames.
func (t *Tracker) Bytes() int64 {
	if t == nil {
		return 0
	}
	return t.bytes.Load()
}

// FormatBytes renders a byte count for logs, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
