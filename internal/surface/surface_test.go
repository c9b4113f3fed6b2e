package surface

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasew/seqcache/internal/frame"
)

func testFrame(t *testing.T, name string) *frame.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	f, err := frame.NewDecoder(nil).Decode(name, buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func TestDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frames")
	d, err := NewDir(out)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	d.SetActive(true)
	d.SetImage(testFrame(t, "a.png"))
	d.SetImage(nil)
	d.SetImage(testFrame(t, "b.png"))
	d.SetActive(false)

	if d.Written() != 2 || d.Active() || d.Err() != nil {
		t.Fatalf("unexpected state written=%d active=%v err=%v", d.Written(), d.Active(), d.Err())
	}

	raw, err := os.ReadFile(filepath.Join(out, "00001.png"))
	if err != nil {
		t.Fatalf("second frame not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("written file is not a png: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.SetActive(true)
	r.SetImage(testFrame(t, "a.png"))
	r.SetActive(false)

	if got := r.Shown(); len(got) != 1 || got[0] != "a.png" {
		t.Errorf("unexpected shown %v", got)
	}
	if got := r.Toggles(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("unexpected toggles %v", got)
	}
	if r.Current().Name != "a.png" {
		t.Errorf("unexpected current frame %q", r.Current().Name)
	}
}
