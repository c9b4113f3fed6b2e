// Package surface has display targets that exist outside a renderer: one
// that records what was shown and one that writes every shown frame to disk.
package surface

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
)

// Recorder remembers every call made to it.
type Recorder struct {
	mu      sync.Mutex
	shown   []string
	toggles []bool
	active  bool
	current *frame.Frame
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetImage(f *frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = f
	if f != nil {
		r.shown = append(r.shown, f.Name)
	}
}

func (r *Recorder) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.toggles = append(r.toggles, active)
}

// Shown returns the names of the frames shown, in order.
func (r *Recorder) Shown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shown...)
}

// Toggles returns every SetActive argument, in order.
func (r *Recorder) Toggles() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.toggles...)
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Current is the frame shown last.
func (r *Recorder) Current() *frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Dir writes each shown frame to <dir>/<n>.png, numbered from zero.
type Dir struct {
	path string

	mu      sync.Mutex
	written int
	active  bool
	err     error
}

func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) SetImage(f *frame.Frame) {
	if f == nil || f.Image == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	name := filepath.Join(d.path, fmt.Sprintf("%05d.png", d.written))
	if err := d.write(name, f); err != nil {
		errutil.ReportError(err, "Failed to write frame", "path", name)
		if d.err == nil {
			d.err = err
		}
		return
	}
	d.written++
}

func (d *Dir) write(name string, f *frame.Frame) error {
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(out, f.Image); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (d *Dir) SetActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = active
}

// Written is the number of frames saved so far.
func (d *Dir) Written() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

func (d *Dir) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Err returns the first write error.
func (d *Dir) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
