package sequence

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/natsort"
)

// FramesDir is the folder inside a sequence directory that holds its frames.
const FramesDir = "frames"

// ErrNoRoot is returned by a Source whose root does not exist.
var ErrNoRoot = errors.New("sequences root not found")

// Descriptor names a sequence and lists its frame files in playback order.
type Descriptor struct {
	Name  string
	Files []string
}

func (d Descriptor) FrameCount() int {
	return len(d.Files)
}

// Source enumerates sequences and opens their frame files.
type Source interface {
	fs.FS
	Discover() ([]Descriptor, error)
}

// DirSource reads the on-disk layout <root>/<name>/frames/<file>.
type DirSource struct {
	fsys       fs.FS
	extensions []string
}

// NewDirSource reads sequences under root. Only .png frames are picked up
// unless extensions are given.
func NewDirSource(root string, extensions ...string) *DirSource {
	return NewFSSource(os.DirFS(root), extensions...)
}

// NewFSSource reads the same layout from any file system.
func NewFSSource(fsys fs.FS, extensions ...string) *DirSource {
	if len(extensions) == 0 {
		extensions = []string{".png"}
	}
	return &DirSource{fsys: fsys, extensions: extensions}
}

func (s *DirSource) Open(name string) (fs.File, error) {
	return s.fsys.Open(name)
}

// Discover lists every sequence directory that has at least one frame, in
// directory order. Frame files are natural-sorted.
func (s *DirSource) Discover() ([]Descriptor, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRoot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}

	var out []Descriptor
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := s.describe(e.Name())
		if err != nil {
			return nil, err
		}
		if d.FrameCount() == 0 {
			slog.Debug("Skipping directory without frames", "sequence", e.Name())
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Describe returns the descriptor of one sequence.
func (s *DirSource) Describe(name string) (Descriptor, error) {
	return s.describe(name)
}

func (s *DirSource) describe(name string) (Descriptor, error) {
	dir := path.Join(name, FramesDir)
	files, err := fs.ReadDir(s.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Descriptor{Name: name}, nil
	}
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to list frames of %s: %w", name, err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !frame.HasExtension(f.Name(), s.extensions) {
			continue
		}
		names = append(names, f.Name())
	}
	natsort.Strings(names)

	d := Descriptor{Name: name, Files: make([]string, len(names))}
	for i, n := range names {
		d.Files[i] = path.Join(dir, n)
	}
	return d, nil
}
