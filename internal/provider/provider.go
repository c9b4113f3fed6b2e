// Package provider loads sequences by label through an asset backend instead
// of scanning a directory.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/natsort"
	"github.com/lucasew/seqcache/internal/sequence"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyLabel  = errors.New("empty label")
	ErrEmptyResult = errors.New("label resolved to no frames")
)

// Backend provisions decoded frames for a label. It is initialized once
// before the first load; Release tells it the caller dropped a label.
type Backend interface {
	Initialize(ctx context.Context) error
	LoadByLabel(ctx context.Context, label string) ([]*frame.Frame, error)
	Release(label string)
}

// State is the initialization state of a Provider.
type State int

const (
	NotInitialized State = iota
	Initializing
	Initialized
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	default:
		return "not initialized"
	}
}

// Provider loads each label at most once and keeps the result until it is
// released.
type Provider struct {
	backend Backend
	cache   *sequence.Cache
	loads   singleflight.Group

	mu       sync.Mutex
	state    State
	initDone chan struct{}
	initErr  error
}

// New creates a Provider over backend. opts configure the cache holding the
// loaded sequences, WithMaxMemory included.
func New(backend Backend, opts ...sequence.Option) *Provider {
	opts = append(opts, sequence.WithUnloadHook(backend.Release))
	return &Provider{
		backend: backend,
		cache:   sequence.NewCache(nil, opts...),
	}
}

// State returns the current initialization state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Initialize initializes the backend once. Concurrent callers wait for the
// attempt in flight; a failed attempt is retried by the next call.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Initialized:
		p.mu.Unlock()
		return nil
	case Initializing:
		done := p.initDone
		p.mu.Unlock()
		select {
		case <-done:
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.state = Initializing
	p.initDone = make(chan struct{})
	p.mu.Unlock()

	err := p.backend.Initialize(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initErr = err
	if err != nil {
		p.state = NotInitialized
		slog.Error("Failed to initialize asset backend", "error", err)
	} else {
		p.state = Initialized
		slog.Debug("Asset backend initialized")
	}
	close(p.initDone)
	return err
}

// LoadByLabel returns the sequence for label, loading it on first use.
// Concurrent loads of one label share a single backend call. Frames are
// ordered by natural name order.
func (p *Provider) LoadByLabel(ctx context.Context, label string) (*sequence.Cached, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	if seq, ok := p.cache.Lookup(label); ok {
		return seq, nil
	}

	// shared loads outlive a canceled caller
	loadCtx := context.WithoutCancel(ctx)
	ch := p.loads.DoChan(label, func() (any, error) {
		if seq, ok := p.cache.GetSequence(label); ok {
			return seq, nil
		}
		frames, err := p.backend.LoadByLabel(loadCtx, label)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", label, err)
		}
		frames = slices.DeleteFunc(frames, func(f *frame.Frame) bool { return f == nil })
		if len(frames) == 0 {
			p.backend.Release(label)
			return nil, fmt.Errorf("%w: %s", ErrEmptyResult, label)
		}
		slices.SortStableFunc(frames, func(a, b *frame.Frame) int {
			return natsort.Compare(a.Name, b.Name)
		})

		seq := sequence.NewCached(label, frames)
		p.cache.Put(seq)
		slog.Info("Sequence loaded", "label", label, "frames", seq.FrameCount(), "memory", frame.FormatBytes(seq.MemoryUsage()))
		return seq, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sequence.Cached), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetSequence returns an already loaded sequence.
func (p *Provider) GetSequence(label string) (*sequence.Cached, bool) {
	return p.cache.GetSequence(label)
}

// Acquire lets the provider back a player. The sequence is pinned until
// the caller runs Unpin.
func (p *Provider) Acquire(label string) (*sequence.Cached, bool) {
	return p.cache.Acquire(label)
}

// Labels lists the loaded labels.
func (p *Provider) Labels() []string {
	return p.cache.Names()
}

// Release frees the frames of label and tells the backend.
func (p *Provider) Release(label string) {
	p.cache.Unload(label)
}

// ReleaseAll releases every loaded label.
func (p *Provider) ReleaseAll() {
	p.cache.ClearCache()
}
