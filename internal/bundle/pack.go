package bundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/sequence"
)

// ErrEmpty is returned when a sequence has no frame to pack.
var ErrEmpty = errors.New("sequence has no frames")

// PackSequence writes the frames of the sequence name found in fsys (laid out
// as <name>/frames/*) to w as a bundle, in playback order. It returns the
// number of frames packed.
func PackSequence(fsys fs.FS, name, author string, w io.Writer) (int, error) {
	desc, err := sequence.NewFSSource(fsys, frame.Extensions...).Describe(name)
	if err != nil {
		return 0, err
	}
	if desc.FrameCount() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	b := NewBuilder(name, author)
	for _, file := range desc.Files {
		if err := addFile(b, fsys, file); err != nil {
			return 0, err
		}
	}
	if _, err := b.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write bundle: %w", err)
	}
	return b.Len(), nil
}

func addFile(b *Builder, fsys fs.FS, file string) error {
	f, err := fsys.Open(file)
	if err != nil {
		return err
	}
	defer errutil.Close(f, "Failed to close frame file", "path", file)
	return b.Add(path.Base(file), f)
}
