package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path"
	"strings"

	"github.com/lucasew/seqcache/internal/errutil"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyData is returned when a frame file has no content.
var ErrEmptyData = errors.New("empty frame data")

// Extensions lists every file extension a registered codec can decode.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// HasExtension reports whether name ends with one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Decoder turns encoded image bytes into a Frame.
type Decoder interface {
	Decode(name string, data []byte) (*Frame, error)
}

// ImageDecoder decodes with the registered image codecs and normalises every
// frame to RGBA.
type ImageDecoder struct {
	Tracker *Tracker
}

func NewDecoder(tracker *Tracker) *ImageDecoder {
	return &ImageDecoder{Tracker: tracker}
}

func (d *ImageDecoder) Decode(name string, data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return newFrame(name, toRGBA(img), d.Tracker), nil
}

// LoadFile reads and decodes one frame. Failures are logged and reported as a
// LoadResult without a frame.
func LoadFile(fsys fs.FS, name string, dec Decoder) LoadResult {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		errutil.ReportError(err, "Error loading frame", "path", name)
		return LoadResult{}
	}
	f, err := dec.Decode(path.Base(name), data)
	if err != nil {
		errutil.ReportError(err, "Error decoding frame", "path", name)
		return LoadResult{}
	}
	return LoadResult{OK: true, Frame: f}
}

// Clone copies f's pixels into a new frame that shares nothing with f.
// It is how a freeze frame outlives the sequence it was taken from.
func Clone(f *Frame, tracker *Tracker) *Frame {
	if f == nil || f.Released() || f.Image == nil {
		return nil
	}
	src := f.Image
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
	return newFrame(f.Name, dst, tracker)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
