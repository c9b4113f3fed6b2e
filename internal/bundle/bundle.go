// Package bundle reads and writes sequence bundles: a small uncompressed
// index followed by every frame file compressed on its own with lz4, so any
// frame can be read without touching the others.
//
// Layout:
//
//	magic "SEQB" | header length (int64, little endian) | gob Header | blobs
//
// Entry offsets are relative to the first byte after the header.
package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
)

var (
	ErrFileFormat = errors.New("corrupted or not a sequence bundle")
	ErrNotFound   = errors.New("entry not found in bundle")
	ErrDuplicate  = errors.New("duplicate entry name")
)

const (
	FormatVersion = 1

	magicLength  = 4
	prefixLength = magicLength + 8
	// headers larger than this are treated as corrupt
	maxHeaderSize = 64 << 20
)

var magic = [magicLength]byte{'S', 'E', 'Q', 'B'}

// IndexEntry locates one file in the bundle.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header describes the bundle contents.
type Header struct {
	Name        string
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

type entry struct {
	name string
	size int64
	data []byte
}

// Builder collects entries and writes them out as one bundle. Add is safe
// to call from several goroutines; entries keep the order they were added in.
type Builder struct {
	header Header

	mu      sync.Mutex
	entries []entry
	names   map[string]struct{}
}

// NewBuilder starts a bundle for the sequence name.
func NewBuilder(name, author string) *Builder {
	return &Builder{
		header: Header{Name: name, Author: author, Version: FormatVersion},
		names:  make(map[string]struct{}),
	}
}

// Add compresses everything read from r under name.
func (b *Builder) Add(name string, r io.Reader) error {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	written, err := io.Copy(zw, r)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	b.names[name] = struct{}{}
	b.entries = append(b.entries, entry{name: name, size: written, data: buf.Bytes()})
	return nil
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// WriteTo writes the bundle to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	header := b.header
	header.DateCreated = time.Now().Unix()
	header.Index = make([]IndexEntry, 0, len(b.entries))
	var offset int64
	for _, e := range b.entries {
		header.Index = append(header.Index, IndexEntry{
			Name:           e.name,
			Offset:         offset,
			Size:           e.size,
			CompressedSize: int64(len(e.data)),
		})
		offset += int64(len(e.data))
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(header); err != nil {
		return 0, fmt.Errorf("failed to encode header: %w", err)
	}

	prefix := make([]byte, prefixLength)
	copy(prefix, magic[:])
	binary.LittleEndian.PutUint64(prefix[magicLength:], uint64(raw.Len()))

	var total int64
	for _, chunk := range [][]byte{prefix, raw.Bytes()} {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for _, e := range b.entries {
		n, err := w.Write(e.data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Archive is an opened bundle. It is safe for concurrent use when the
// underlying ReaderAt is.
type Archive struct {
	r         io.ReaderAt
	header    Header
	dataStart int64
	index     map[string]IndexEntry
}

// Open reads the bundle header from r.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, prefixLength)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	if !bytes.Equal(prefix[:magicLength], magic[:]) {
		return nil, ErrFileFormat
	}
	size := int64(binary.LittleEndian.Uint64(prefix[magicLength:]))
	if size <= 0 || size > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrFileFormat, size)
	}

	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, prefixLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	var header Header
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFileFormat, header.Version)
	}

	a := &Archive{
		r:         r,
		header:    header,
		dataStart: prefixLength + size,
		index:     make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		a.index[e.Name] = e
	}
	return a, nil
}

// Header returns the bundle header.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the entries in the order they were added.
func (a *Archive) Names() []string {
	names := make([]string, len(a.header.Index))
	for i, e := range a.header.Index {
		names[i] = e.Name
	}
	return names
}

// Open returns a reader over the decompressed entry.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	section := io.NewSectionReader(a.r, a.dataStart+e.Offset, e.CompressedSize)
	return lz4.NewReader(section), nil
}

// ReadAll decompresses an entry and checks its size against the index.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileFormat, name, err)
	}
	if int64(len(data)) != a.index[name].Size {
		return nil, fmt.Errorf("%w: %s is %d bytes, index says %d", ErrFileFormat, name, len(data), a.index[name].Size)
	}
	return data, nil
}
