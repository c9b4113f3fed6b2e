package repository

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasew/seqcache/internal/eviction"
	"github.com/lucasew/seqcache/internal/hashutil"
	"golang.org/x/sync/singleflight"
)

// LocalRepository keeps bundles on disk as {cacheDir}/{algo}/{hash}.
// Stored and served bundles are reported to the eviction manager, if any.
type LocalRepository struct {
	CacheDir string
	eviction *eviction.Manager
	g        singleflight.Group
}

func NewLocalRepository(cacheDir string, eviction *eviction.Manager) *LocalRepository {
	return &LocalRepository{
		CacheDir: cacheDir,
		eviction: eviction,
	}
}

func (r *LocalRepository) getPath(algo, hash string) string {
	return filepath.Join(r.CacheDir, algo, hash)
}

// Key is the eviction key of a stored bundle.
func Key(algo, hash string) string {
	return algo + "/" + hash
}

func splitKey(k string) (algo, hash string, err error) {
	algo, hash, ok := strings.Cut(k, "/")
	if !ok || !hashutil.IsSupported(algo) || hash == "" || strings.ContainsAny(hash, `/\\.`) {
		return "", "", fmt.Errorf("invalid key %q", k)
	}
	return algo, hash, nil
}

func (r *LocalRepository) Exists(ctx context.Context, algo, hash string) (bool, error) {
	_, err := os.Stat(r.getPath(algo, hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (r *LocalRepository) Get(ctx context.Context, algo, hash string) (io.ReadCloser, int64, error) {
	path := r.getPath(algo, hash)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if r.eviction != nil {
		r.eviction.Touch(Key(algo, hash))
	}
	return f, info.Size(), nil
}

// Put stores a bundle unless it is already present.
//
// Concurrent calls for the same hash share one fetch. Content goes to a
// temporary file while being hashed and is renamed into place only when the
// hash matches.
func (r *LocalRepository) Put(ctx context.Context, algo, hash string, fetcher Fetcher) error {
	k := Key(algo, hash)
	_, err, _ := r.g.Do(k, func() (interface{}, error) {
		if exists, _ := r.Exists(ctx, algo, hash); exists {
			return nil, nil
		}

		reader, _, err := fetcher()
		if err != nil {
			return nil, err
		}
		defer func() { _ = reader.Close() }()

		finalPath := r.getPath(algo, hash)
		if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create algo dir: %w", err)
		}

		tmpFile, err := os.CreateTemp(r.CacheDir, "put-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		defer func() { _ = os.Remove(tmpFile.Name()) }()
		defer func() { _ = tmpFile.Close() }()

		hasher, err := hashutil.GetHasher(algo)
		if err != nil {
			return nil, err
		}

		mw := io.MultiWriter(tmpFile, hasher)
		written, err := io.Copy(mw, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to write to temp file: %w", err)
		}

		actualHash := hex.EncodeToString(hasher.Sum(nil))
		if actualHash != hash {
			return nil, fmt.Errorf("hash mismatch: expected %s, got %s", hash, actualHash)
		}

		if err := tmpFile.Close(); err != nil {
			return nil, fmt.Errorf("failed to close temp file: %w", err)
		}

		if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
			return nil, fmt.Errorf("failed to rename to final path: %w", err)
		}

		if r.eviction != nil {
			r.eviction.Add(k, written)
		}

		slog.Info("Stored bundle", "algo", algo, "hash", hash, "size", written)
		return nil, nil
	})
	return err
}

// PutReader hashes data while storing it and returns its hash.
func (r *LocalRepository) PutReader(ctx context.Context, algo string, data io.Reader) (string, int64, error) {
	if err := os.MkdirAll(r.CacheDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.CacheDir, "import-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	defer func() { _ = tmp.Close() }()

	hash, size, err := hashutil.Sum(algo, io.TeeReader(data, tmp))
	if err != nil {
		return "", 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}
	err = r.Put(ctx, algo, hash, func() (io.ReadCloser, int64, error) {
		return io.NopCloser(tmp), size, nil
	})
	if err != nil {
		return "", 0, err
	}
	return hash, size, nil
}

// GetOrFetch serves algo/hash from disk, fetching and storing it first on a
// miss.
func (r *LocalRepository) GetOrFetch(ctx context.Context, algo, hash string, fetcher Fetcher) (io.ReadCloser, int64, error) {
	reader, size, err := r.Get(ctx, algo, hash)
	if err == nil {
		return reader, size, nil
	}

	if err := r.Put(ctx, algo, hash, fetcher); err != nil {
		return nil, 0, err
	}
	return r.Get(ctx, algo, hash)
}

// Walk visits every stored bundle with its eviction key and size.
func (r *LocalRepository) Walk(fn func(key string, size int64) error) error {
	algos, err := os.ReadDir(r.CacheDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, a := range algos {
		if !a.IsDir() || !hashutil.IsSupported(a.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(r.CacheDir, a.Name()))
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			if err := fn(Key(a.Name(), f.Name()), info.Size()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes the bundle stored under an eviction key. Missing bundles
// are not an error.
func (r *LocalRepository) Delete(k string) error {
	algo, hash, err := splitKey(k)
	if err != nil {
		return err
	}
	if err := os.Remove(r.getPath(algo, hash)); err != nil && !os.IsNotExist(err) {
		return err
	}
	slog.Debug("Deleted bundle", "algo", algo, "hash", hash)
	return nil
}
