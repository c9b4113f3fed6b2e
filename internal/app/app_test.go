package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasew/seqcache/internal/bundle"
	"github.com/lucasew/seqcache/internal/catalog"
	"github.com/lucasew/seqcache/internal/config"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/tick"
)

func writeSequence(t *testing.T, root, name string, n int) {
	t.Helper()
	dir := filepath.Join(root, name, "frames")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := range n {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.RGBA{R: uint8(i), A: 255})
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%s_%d.png", name, i)), buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := OpenStore(Config{CacheDir: dir, MaxCacheSize: 1 << 20})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	first, err := store.Register(ctx, "intro", 3, bytes.NewReader([]byte("bundle")))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	second, err := store.Register(ctx, "intro-copy", 3, bytes.NewReader([]byte("bundle")))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("same content got two hashes: %s %s", first.Hash, second.Hash)
	}
	if store.Eviction.CurrentBytes() != int64(len("bundle")) {
		t.Errorf("Expected tracked size %d, got %d", len("bundle"), store.Eviction.CurrentBytes())
	}

	t.Run("Empty Label", func(t *testing.T) {
		if _, err := store.Register(ctx, "", 0, bytes.NewReader(nil)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("Remove Keeps Shared Bundle", func(t *testing.T) {
		found, err := store.Remove(ctx, "intro", true)
		if err != nil || !found {
			t.Fatalf("Remove: found=%v err=%v", found, err)
		}
		ok, _ := store.Repo.Exists(ctx, first.Algo, first.Hash)
		if !ok {
			t.Fatal("bundle still referenced by intro-copy was deleted")
		}
	})

	t.Run("Remove Prunes", func(t *testing.T) {
		found, err := store.Remove(ctx, "intro-copy", true)
		if err != nil || !found {
			t.Fatalf("Remove: found=%v err=%v", found, err)
		}
		ok, _ := store.Repo.Exists(ctx, first.Algo, first.Hash)
		if ok {
			t.Fatal("unreferenced bundle was kept")
		}
		if store.Eviction.CurrentBytes() != 0 {
			t.Errorf("Expected tracked size 0, got %d", store.Eviction.CurrentBytes())
		}
	})

	t.Run("Remove Unknown", func(t *testing.T) {
		found, err := store.Remove(ctx, "nope", true)
		if err != nil || found {
			t.Fatalf("Remove: found=%v err=%v", found, err)
		}
	})
}

func TestOpenStore_UnknownStrategy(t *testing.T) {
	if _, err := OpenStore(Config{CacheDir: t.TempDir(), EvictionStrategy: "fifo"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewServer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenStore(Config{CacheDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	entry, err := store.Register(ctx, "intro", 1, bytes.NewReader([]byte("bundle")))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	server, cleanup, err := NewServer(Config{CacheDir: dir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer cleanup()

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	t.Run("Labels", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/labels/intro")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		var got catalog.Entry
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Hash != entry.Hash {
			t.Errorf("Expected hash %s, got %s", entry.Hash, got.Hash)
		}
	})

	t.Run("Fetch", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/fetch/%s/%s", ts.URL, entry.Algo, entry.Hash))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "bundle" {
			t.Errorf("Expected bundle content, got %q", body)
		}
	})
}

func TestNewCache(t *testing.T) {
	root := t.TempDir()
	writeSequence(t, root, "intro", 3)
	writeSequence(t, root, "outro", 2)

	s := config.Default()
	s.SequencesRoot = root
	tracker := frame.NewTracker()
	cache := NewCache(s, tick.NewRealtime(0), tracker)

	if err := cache.PreloadAll(t.Context(), nil, nil); err != nil {
		t.Fatalf("PreloadAll failed: %v", err)
	}
	if cache.Count() != 2 {
		t.Fatalf("Expected 2 sequences, got %d", cache.Count())
	}
	if tracker.Live() != 5 {
		t.Errorf("Expected 5 live frames, got %d", tracker.Live())
	}
	cache.ClearCache()
	if tracker.Live() != 0 {
		t.Errorf("Expected 0 live frames after clear, got %d", tracker.Live())
	}
}

func TestNewProvider(t *testing.T) {
	ctx := t.Context()
	root := t.TempDir()
	writeSequence(t, root, "loop", 4)

	var buf bytes.Buffer
	n, err := bundle.PackSequence(os.DirFS(root), "loop", "tests", &buf)
	if err != nil {
		t.Fatal(err)
	}

	store := openStore(t, t.TempDir())
	if _, err := store.Register(ctx, "loop", n, &buf); err != nil {
		t.Fatal(err)
	}

	tracker := frame.NewTracker()
	p := NewProvider(store, config.Default(), tracker)
	seq, err := p.LoadByLabel(ctx, "loop")
	if err != nil {
		t.Fatalf("LoadByLabel failed: %v", err)
	}
	if seq.FrameCount() != 4 {
		t.Fatalf("Expected 4 frames, got %d", seq.FrameCount())
	}
	if f := seq.Frame(3); f == nil || f.Name != "loop_3.png" {
		t.Errorf("Unexpected last frame %+v", f)
	}
	p.ReleaseAll()
	if tracker.Live() != 0 {
		t.Errorf("Expected 0 live frames, got %d", tracker.Live())
	}
}
