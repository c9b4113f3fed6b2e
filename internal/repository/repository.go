// Package repository stores sequence bundles by content hash, locally under
// {dir}/{algo}/{hash} or remotely behind another seqcache server.
package repository

import (
	"context"
	"errors"
	"io"

	"github.com/lucasew/seqcache/internal/errutil"
)

// ErrNotFound is returned when no repository has the requested content.
var ErrNotFound = errors.New("content not found in any repository")

// Repository is a read-only content addressed store.
type Repository interface {
	Exists(ctx context.Context, algo, hash string) (bool, error)
	Get(ctx context.Context, algo, hash string) (io.ReadCloser, int64, error)
}

// Fetcher produces the content to store on a cache miss.
type Fetcher func() (io.ReadCloser, int64, error)

// FromUpstreams fetches algo/hash from the first repository that has it.
func FromUpstreams(ctx context.Context, upstreams []Repository, algo, hash string) Fetcher {
	return func() (io.ReadCloser, int64, error) {
		for _, up := range upstreams {
			reader, size, err := up.Get(ctx, algo, hash)
			if err == nil {
				return reader, size, nil
			}
			errutil.LogMsg(err, "Upstream miss", "algo", algo, "hash", hash)
		}
		return nil, 0, ErrNotFound
	}
}
