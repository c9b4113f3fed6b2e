// Package sequence discovers frame sequences, loads them in small batches and
// keeps them in memory by name.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lucasew/seqcache/internal/eviction"
	"github.com/lucasew/seqcache/internal/eviction/lru"
	"github.com/lucasew/seqcache/internal/eviction/policy"
	"github.com/lucasew/seqcache/internal/eviction/policy/maxsize"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/natsort"
	"github.com/lucasew/seqcache/internal/tick"
)

const (
	DefaultBatchSize = 2

	StatusComplete = "Loading complete!"
)

// ProgressFunc receives overall progress in [0,1].
type ProgressFunc func(float64)

// StatusFunc receives human readable status lines.
type StatusFunc func(string)

// Cache holds fully loaded sequences by name.
type Cache struct {
	source     Source
	decoder    frame.Decoder
	sched      tick.Scheduler
	batchSize  int
	showMemory bool
	maxMemory  int64
	evictor    *eviction.Manager
	onUnload   func(name string)

	loadMu  sync.Mutex
	mu      sync.RWMutex
	entries map[string]*Cached
}

type Option func(*Cache)

// WithDecoder replaces the default image decoder.
func WithDecoder(d frame.Decoder) Option {
	return func(c *Cache) { c.decoder = d }
}

// WithScheduler sets where preload yields between batches.
func WithScheduler(s tick.Scheduler) Option {
	return func(c *Cache) { c.sched = s }
}

// WithBatchSize sets how many frames are decoded between two yields.
func WithBatchSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithMaxMemory bounds the pixel bytes held by the cache. Put unloads the
// least recently used sequences that are not pinned once the bound is
// exceeded. PreloadAll never unloads anything: it only warns when the pass
// ends over the bound. Zero means unbounded.
func WithMaxMemory(bytes int64) Option {
	return func(c *Cache) {
		if bytes <= 0 {
			c.maxMemory = 0
			c.evictor = nil
			return
		}
		c.maxMemory = bytes
		c.evictor = eviction.NewManager("sequences", []policy.Policy{&maxsize.Policy{MaxBytes: bytes}}, 0, lru.New())
	}
}

// WithUnloadHook runs fn after a sequence is released, whether by Unload,
// ClearCache or the memory bound.
func WithUnloadHook(fn func(name string)) Option {
	return func(c *Cache) { c.onUnload = fn }
}

// WithMemoryReport logs the size of every published sequence.
func WithMemoryReport(on bool) Option {
	return func(c *Cache) { c.showMemory = on }
}

func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:    source,
		decoder:   frame.NewDecoder(nil),
		sched:     tick.NewRealtime(0),
		batchSize: DefaultBatchSize,
		entries:   make(map[string]*Cached),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.evictor != nil {
		c.evictor.SetStore(cacheStore{c})
	}
	return c
}

// PreloadAll loads every discovered sequence that is not cached yet.
//
// Frames are decoded batchSize at a time with a yield after each batch.
// A sequence becomes visible to lookups only once all its frames were
// attempted. A missing root or an empty one is not an error: progress jumps
// to 1 and nothing is loaded.
//
// When ctx is cancelled the sequence being loaded is dropped, the ones
// published before stay cached and ctx.Err() is returned.
func (c *Cache) PreloadAll(ctx context.Context, onProgress ProgressFunc, onStatus StatusFunc) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	if onStatus == nil {
		onStatus = func(string) {}
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	descs, err := c.source.Discover()
	if errors.Is(err, ErrNoRoot) {
		slog.Warn("Sequences root does not exist, nothing to preload")
		onProgress(1)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to discover sequences: %w", err)
	}
	total := 0
	for _, d := range descs {
		total += d.FrameCount()
	}
	if total == 0 {
		slog.Warn("No sequences found")
		onProgress(1)
		return nil
	}

	processed := 0
	step := func() {
		processed++
		onProgress(float64(processed) / float64(total))
	}

	start := time.Now()
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.FrameCount() == 0 {
			continue
		}
		if c.IsCached(d.Name) {
			processed += d.FrameCount()
			onProgress(float64(processed) / float64(total))
			continue
		}

		onStatus(fmt.Sprintf("Loading %s...", d.Name))
		for _, issue := range CheckNumbering(d.Files) {
			slog.Warn("Frame numbering problem", "sequence", d.Name, "issue", issue.String())
		}

		seq, err := c.load(ctx, d, step)
		if err != nil {
			return err
		}
		c.publish(seq)
	}

	onProgress(1)
	onStatus(StatusComplete)
	if used := c.MemoryUsage(); c.maxMemory > 0 && used > c.maxMemory {
		slog.Warn("Preloaded sequences exceed the memory budget", "memory", frame.FormatBytes(used), "budget", frame.FormatBytes(c.maxMemory))
	}
	slog.Debug("Preload finished", "sequences", c.Count(), "elapsed", time.Since(start), "memory", frame.FormatBytes(c.MemoryUsage()))
	return nil
}

func (c *Cache) load(ctx context.Context, d Descriptor, step func()) (*Cached, error) {
	frames := make([]*frame.Frame, d.FrameCount())
	for i := 0; i < len(d.Files); i += c.batchSize {
		end := min(i+c.batchSize, len(d.Files))
		for j := i; j < end; j++ {
			if res := frame.LoadFile(c.source, d.Files[j], c.decoder); res.OK {
				frames[j] = res.Frame
			}
			step()
		}
		if err := c.sched.Yield(ctx); err != nil {
			NewCached(d.Name, frames).Release()
			slog.Debug("Preload cancelled", "sequence", d.Name, "loaded", end)
			return nil, err
		}
	}
	return NewCached(d.Name, frames), nil
}

func (c *Cache) publish(seq *Cached) {
	c.mu.Lock()
	c.entries[seq.Name()] = seq
	c.mu.Unlock()

	if c.showMemory {
		slog.Info("Sequence cached", "sequence", seq.Name(), "frames", seq.FrameCount(), "failed", seq.FailedFrames(), "memory", frame.FormatBytes(seq.MemoryUsage()))
	} else {
		slog.Debug("Sequence cached", "sequence", seq.Name(), "frames", seq.FrameCount())
	}

	if c.evictor != nil {
		c.evictor.Add(seq.Name(), seq.MemoryUsage())
	}
}

// Put publishes a sequence built elsewhere, replacing any previous one
// with the same name. With a memory bound, older unpinned sequences are
// unloaded to make room; seq itself is kept.
func (c *Cache) Put(seq *Cached) {
	c.Unload(seq.Name())
	c.publish(seq)
	if c.evictor != nil && seq.Pin() {
		c.evictor.RunEviction()
		seq.Unpin()
	}
}

// GetSequence returns the cached sequence without side effects.
func (c *Cache) GetSequence(name string) (*Cached, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seq, ok := c.entries[name]
	return seq, ok
}

// Lookup is GetSequence for playback: it also marks the sequence as recently
// used for the memory bound.
func (c *Cache) Lookup(name string) (*Cached, bool) {
	seq, ok := c.GetSequence(name)
	if ok && c.evictor != nil {
		c.evictor.Touch(name)
	}
	return seq, ok
}

// Acquire is Lookup plus a pin: the frames stay alive, even if the sequence
// is unloaded meanwhile, until the caller runs Unpin.
func (c *Cache) Acquire(name string) (*Cached, bool) {
	c.mu.RLock()
	seq, ok := c.entries[name]
	if ok && !seq.Pin() {
		seq, ok = nil, false
	}
	c.mu.RUnlock()
	if ok && c.evictor != nil {
		c.evictor.Touch(name)
	}
	return seq, ok
}

func (c *Cache) IsCached(name string) bool {
	_, ok := c.GetSequence(name)
	return ok
}

// Unload releases one sequence. It reports whether it was cached.
func (c *Cache) Unload(name string) bool {
	c.mu.Lock()
	seq, ok := c.entries[name]
	delete(c.entries, name)
	c.mu.Unlock()

	if !ok {
		return false
	}
	seq.Release()
	if c.evictor != nil {
		c.evictor.Forget(name)
	}
	if c.onUnload != nil {
		c.onUnload(name)
	}
	slog.Debug("Sequence unloaded", "sequence", name)
	return true
}

// ClearCache releases every sequence and empties the cache.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*Cached)
	c.mu.Unlock()

	for name, seq := range old {
		seq.Release()
		if c.evictor != nil {
			c.evictor.Forget(name)
		}
		if c.onUnload != nil {
			c.onUnload(name)
		}
	}
	if len(old) > 0 {
		slog.Debug("Cache cleared", "sequences", len(old))
	}
}

func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MemoryUsage sums the pixel bytes of every cached sequence.
func (c *Cache) MemoryUsage() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, seq := range c.entries {
		total += seq.MemoryUsage()
	}
	return total
}

// Names returns the cached sequence names in natural order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.RUnlock()
	natsort.Strings(names)
	return names
}

// cacheStore lets the eviction manager unload sequences.
type cacheStore struct {
	c *Cache
}

func (s cacheStore) Walk(fn func(key string, size int64) error) error {
	for _, name := range s.c.Names() {
		seq, ok := s.c.GetSequence(name)
		if !ok {
			continue
		}
		if err := fn(name, seq.MemoryUsage()); err != nil {
			return err
		}
	}
	return nil
}

// Delete unloads key unless it is pinned.
func (s cacheStore) Delete(key string) error {
	c := s.c
	c.mu.Lock()
	seq, ok := c.entries[key]
	if ok && seq.Pinned() {
		c.mu.Unlock()
		return eviction.ErrInUse
	}
	c.mu.Unlock()
	c.Unload(key)
	return nil
}
