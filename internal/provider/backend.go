package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lucasew/seqcache/internal/bundle"
	"github.com/lucasew/seqcache/internal/catalog"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownLabel is returned for labels missing from the catalog.
var ErrUnknownLabel = errors.New("unknown label")

// Labels resolves a label to its bundle.
type Labels interface {
	Get(ctx context.Context, label string) (catalog.Entry, bool, error)
}

// Bundles is where bundles are read from and cached.
type Bundles interface {
	GetOrFetch(ctx context.Context, algo, hash string, fetcher repository.Fetcher) (io.ReadCloser, int64, error)
}

// BundleBackend loads labels from bundles: label to catalog entry, entry to
// a bundle in the local repository (pulled from upstreams on a miss), bundle
// to decoded frames.
type BundleBackend struct {
	Labels    Labels
	Local     Bundles
	Upstreams []repository.Repository
	Decoder   frame.Decoder
	// Workers bounds how many frames are decoded at once.
	Workers int

	mu     sync.Mutex
	loaded map[string]int
}

func NewBundleBackend(labels Labels, local Bundles, upstreams []repository.Repository, decoder frame.Decoder, workers int) *BundleBackend {
	return &BundleBackend{
		Labels:    labels,
		Local:     local,
		Upstreams: upstreams,
		Decoder:   decoder,
		Workers:   workers,
	}
}

func (b *BundleBackend) Initialize(ctx context.Context) error {
	if b.Labels == nil || b.Local == nil {
		return fmt.Errorf("bundle backend needs a catalog and a repository")
	}
	if b.Decoder == nil {
		b.Decoder = frame.NewDecoder(nil)
	}
	if b.Workers <= 0 {
		b.Workers = 1
	}
	b.mu.Lock()
	b.loaded = make(map[string]int)
	b.mu.Unlock()
	return ctx.Err()
}

func (b *BundleBackend) LoadByLabel(ctx context.Context, label string) ([]*frame.Frame, error) {
	entry, found, err := b.Labels.Get(ctx, label)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}

	archive, err := b.open(ctx, entry)
	if err != nil {
		return nil, err
	}

	names := archive.Names()
	frames := make([]*frame.Frame, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := archive.ReadAll(name)
			if err != nil {
				errutil.ReportError(err, "Error reading frame", "label", label, "frame", name)
				return nil
			}
			f, err := b.Decoder.Decode(name, data)
			if err != nil {
				errutil.ReportError(err, "Error decoding frame", "label", label, "frame", name)
				return nil
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, f := range frames {
			f.Release()
		}
		return nil, err
	}

	b.mu.Lock()
	b.loaded[label] = len(frames)
	b.mu.Unlock()
	return frames, nil
}

func (b *BundleBackend) open(ctx context.Context, entry catalog.Entry) (*bundle.Archive, error) {
	rc, _, err := b.Local.GetOrFetch(ctx, entry.Algo, entry.Hash, repository.FromUpstreams(ctx, b.Upstreams, entry.Algo, entry.Hash))
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle %s/%s: %w", entry.Algo, entry.Hash, err)
	}
	defer errutil.Close(rc, "Failed to close bundle", "hash", entry.Hash)

	// rc is closed on return, frames are read after that
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return bundle.Open(bytes.NewReader(data))
}

func (b *BundleBackend) Release(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.loaded[label]; ok {
		delete(b.loaded, label)
		slog.Debug("Label released", "label", label)
	}
}

// Loaded returns how many labels are currently held by callers.
func (b *BundleBackend) Loaded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loaded)
}
