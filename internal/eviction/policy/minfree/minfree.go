// Package minfree keeps a minimum of free space on the volume holding the
// bundle cache.
package minfree

import (
	"fmt"
	"log/slog"
	"syscall"

	"github.com/dustin/go-humanize"
)

// Policy asks for eviction when free space on the volume holding Path drops
// below MinFreeBytes.
type Policy struct {
	Path         string
	MinFreeBytes int64
}

// FreeBytes returns the space available to unprivileged users on the volume
// holding path.
func FreeBytes(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to check disk space of %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

func (m *Policy) BytesToFree(currentSize int64) (int64, error) {
	if m.MinFreeBytes <= 0 {
		return 0, nil
	}
	free, err := FreeBytes(m.Path)
	if err != nil {
		return 0, err
	}

	slog.Debug("Disk space check", "path", m.Path, "free", humanize.IBytes(uint64(free)), "min_required", humanize.IBytes(uint64(m.MinFreeBytes)))

	if free >= m.MinFreeBytes {
		return 0, nil
	}
	// never ask for more than the cache holds
	return min(m.MinFreeBytes-free, currentSize), nil
}
