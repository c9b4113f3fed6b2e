package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/lucasew/seqcache/internal/bundle"
	"github.com/lucasew/seqcache/internal/catalog"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/handler"
	"github.com/lucasew/seqcache/internal/hashutil"
	"github.com/lucasew/seqcache/internal/repository"
)

// packBundle returns a bundle of n frames named loop_<i>.png, with a corrupt
// frame at index bad when bad >= 0.
func packBundle(t testing.TB, n, bad int) []byte {
	t.Helper()
	fsys := fstest.MapFS{}
	for i := 0; i < n; i++ {
		data := encodeFrame(t, uint8(i))
		if i == bad {
			data = []byte("not a png")
		}
		fsys[fmt.Sprintf("loop/frames/loop_%d.png", i)] = &fstest.MapFile{Data: data}
	}
	var buf bytes.Buffer
	if _, err := bundle.PackSequence(fsys, "loop", "tests", &buf); err != nil {
		t.Fatalf("PackSequence failed: %v", err)
	}
	return buf.Bytes()
}

func openCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.sqlite"))
	if err != nil {
		t.Fatalf("catalog.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestBundleBackend(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	local := repository.NewLocalRepository(t.TempDir(), nil)

	hash, _, err := local.PutReader(ctx, hashutil.DefaultAlgo, bytes.NewReader(packBundle(t, 12, 5)))
	if err != nil {
		t.Fatalf("PutReader failed: %v", err)
	}
	if err := cat.Put(ctx, catalog.Entry{Label: "loop", Algo: hashutil.DefaultAlgo, Hash: hash, Frames: 12}); err != nil {
		t.Fatalf("catalog Put failed: %v", err)
	}

	tracker := frame.NewTracker()
	backend := NewBundleBackend(cat, local, nil, frame.NewDecoder(tracker), 2)
	p := New(backend)

	seq, err := p.LoadByLabel(ctx, "loop")
	if err != nil {
		t.Fatalf("LoadByLabel failed: %v", err)
	}
	// the corrupt frame is dropped
	if seq.FrameCount() != 11 {
		t.Fatalf("expected 11 frames, got %d", seq.FrameCount())
	}
	for i := 0; i < seq.FrameCount(); i++ {
		want := i
		if i >= 5 {
			want = i + 1
		}
		if got := int(seq.Frame(i).Image.RGBAAt(0, 0).R); got != want {
			t.Errorf("slot %d holds frame %d", i, got)
		}
	}
	if backend.Loaded() != 1 {
		t.Errorf("expected 1 loaded label, got %d", backend.Loaded())
	}

	p.Release("loop")
	if backend.Loaded() != 0 || tracker.Live() != 0 {
		t.Errorf("release left loaded=%d live=%d", backend.Loaded(), tracker.Live())
	}

	if _, err := p.LoadByLabel(ctx, "nope"); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestBundleBackend_Upstream(t *testing.T) {
	ctx := context.Background()

	remote := repository.NewLocalRepository(t.TempDir(), nil)
	hash, _, err := remote.PutReader(ctx, hashutil.DefaultAlgo, bytes.NewReader(packBundle(t, 3, -1)))
	if err != nil {
		t.Fatalf("PutReader failed: %v", err)
	}
	srv := httptest.NewServer(handler.NewCASHandler(remote, nil))
	defer srv.Close()

	cat := openCatalog(t)
	if err := cat.Put(ctx, catalog.Entry{Label: "loop", Algo: hashutil.DefaultAlgo, Hash: hash, Frames: 3}); err != nil {
		t.Fatalf("catalog Put failed: %v", err)
	}
	local := repository.NewLocalRepository(t.TempDir(), nil)
	upstreams := []repository.Repository{repository.NewUpstreamRepository(srv.URL, nil)}
	p := New(NewBundleBackend(cat, local, upstreams, nil, 4))

	seq, err := p.LoadByLabel(ctx, "loop")
	if err != nil {
		t.Fatalf("LoadByLabel failed: %v", err)
	}
	if seq.FrameCount() != 3 {
		t.Errorf("expected 3 frames, got %d", seq.FrameCount())
	}
	if ok, _ := local.Exists(ctx, hashutil.DefaultAlgo, hash); !ok {
		t.Error("bundle should be cached locally after the first load")
	}
}

func TestBundleBackend_NotInitialized(t *testing.T) {
	p := New(NewBundleBackend(nil, nil, nil, nil, 0))
	if _, err := p.LoadByLabel(context.Background(), "loop"); err == nil {
		t.Error("expected initialization error without catalog and repository")
	}
}
