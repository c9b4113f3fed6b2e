package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, w *Watcher, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case name, ok := <-w.Events:
			if !ok {
				t.Fatalf("events closed before %q", want)
			}
			if name == want {
				return
			}
		case <-deadline:
			t.Fatalf("no event for %q", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	frames := filepath.Join(root, "intro", "frames")
	if err := os.MkdirAll(frames, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(root)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	t.Run("Existing Sequence", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(frames, "0001.png"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		waitFor(t, w, "intro")
	})

	t.Run("New Sequence", func(t *testing.T) {
		dir := filepath.Join(root, "outro")
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		waitFor(t, w, "outro")

		time.Sleep(2 * Debounce)
		if err := os.Mkdir(filepath.Join(dir, "frames"), 0o755); err != nil {
			t.Fatal(err)
		}
		waitFor(t, w, "outro")

		time.Sleep(2 * Debounce)
		if err := os.WriteFile(filepath.Join(dir, "frames", "0001.png"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		waitFor(t, w, "outro")
	})
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, ok := <-w.Events; ok {
		t.Fatal("events still open")
	}
}

func TestMissingRoot(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}
