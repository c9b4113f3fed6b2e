package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasew/seqcache/internal/catalog"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/eviction"
	_ "github.com/lucasew/seqcache/internal/eviction/lru"
	"github.com/lucasew/seqcache/internal/eviction/policy"
	"github.com/lucasew/seqcache/internal/eviction/policy/maxsize"
	"github.com/lucasew/seqcache/internal/eviction/policy/minfree"
	"github.com/lucasew/seqcache/internal/hashutil"
	"github.com/lucasew/seqcache/internal/httpclient"
	"github.com/lucasew/seqcache/internal/repository"
)

// CatalogFile is the catalog database name inside the cache dir.
const CatalogFile = "catalog.db"

type Config struct {
	Port             int
	CacheDir         string
	MaxCacheSize     int64
	MinFreeSpace     int64
	EvictionInterval time.Duration
	EvictionStrategy string
	Upstreams        []string
	CaCertPath       string
	Timeout          time.Duration
}

// Store is the on-disk side of seqcache: bundles by hash, labels in the
// catalog and the upstreams bundles are pulled from.
type Store struct {
	Repo      *repository.LocalRepository
	Catalog   *catalog.Catalog
	Eviction  *eviction.Manager
	Upstreams []repository.Repository
}

// OpenStore opens the bundle repository and the catalog under cfg.CacheDir.
// Eviction is not started; see Store.Start.
func OpenStore(cfg Config) (*Store, error) {
	if cfg.EvictionStrategy == "" {
		cfg.EvictionStrategy = "lru"
	}
	strat, err := eviction.GetStrategy(cfg.EvictionStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize eviction strategy: %w", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	var policies []policy.Policy
	if cfg.MaxCacheSize > 0 {
		slog.Debug("Adding MaxCacheSize policy", "max_size", cfg.MaxCacheSize)
		policies = append(policies, &maxsize.Policy{MaxBytes: cfg.MaxCacheSize})
	}
	if cfg.MinFreeSpace > 0 {
		slog.Debug("Adding MinFreeSpace policy", "min_free", cfg.MinFreeSpace)
		policies = append(policies, &minfree.Policy{Path: cfg.CacheDir, MinFreeBytes: cfg.MinFreeSpace})
	}
	if len(policies) == 0 {
		slog.Debug("No eviction policies configured (unlimited cache)")
	}

	mgr := eviction.NewManager(cfg.CacheDir, policies, cfg.EvictionInterval, strat)
	repo := repository.NewLocalRepository(cfg.CacheDir, mgr)
	mgr.SetStore(repo)
	if err := mgr.LoadInitialState(); err != nil {
		slog.Warn("Failed to load initial cache state", "error", err)
	}

	dbPath := filepath.Join(cfg.CacheDir, CatalogFile)
	cat, err := catalog.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %s: %w", dbPath, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	client, err := httpclient.LoadClient(cfg.CaCertPath, timeout)
	if err != nil {
		errutil.Close(cat, "Failed to close catalog")
		return nil, err
	}
	var upstreams []repository.Repository
	for _, u := range cfg.Upstreams {
		upstreams = append(upstreams, repository.NewUpstreamRepository(u, client))
	}

	return &Store{
		Repo:      repo,
		Catalog:   cat,
		Eviction:  mgr,
		Upstreams: upstreams,
	}, nil
}

// Start runs periodic eviction until ctx is done.
func (s *Store) Start(ctx context.Context) {
	s.Eviction.Start(ctx)
}

func (s *Store) Close() error {
	return s.Catalog.Close()
}

// Register stores a bundle and points label at it. An existing label is
// repointed.
func (s *Store) Register(ctx context.Context, label string, frames int, bundle io.Reader) (catalog.Entry, error) {
	if label == "" {
		return catalog.Entry{}, fmt.Errorf("empty label")
	}
	hash, size, err := s.Repo.PutReader(ctx, hashutil.DefaultAlgo, bundle)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to store bundle: %w", err)
	}
	entry := catalog.Entry{
		Label:     label,
		Algo:      hashutil.DefaultAlgo,
		Hash:      hash,
		Frames:    frames,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Catalog.Put(ctx, entry); err != nil {
		return catalog.Entry{}, err
	}
	slog.Info("Registered label", "label", label, "hash", hash, "size", size)
	return entry, nil
}

// Remove deletes label. With prune the bundle is deleted too once no other
// label points at it. It reports whether the label existed.
func (s *Store) Remove(ctx context.Context, label string, prune bool) (bool, error) {
	entry, found, err := s.Catalog.Get(ctx, label)
	if err != nil || !found {
		return false, err
	}
	if _, err := s.Catalog.Delete(ctx, label); err != nil {
		return false, err
	}
	if !prune {
		return true, nil
	}

	used, err := s.Catalog.Referenced(ctx, entry.Algo, entry.Hash)
	if err != nil {
		return true, err
	}
	if used {
		slog.Debug("Bundle still referenced, keeping it", "hash", entry.Hash)
		return true, nil
	}
	k := repository.Key(entry.Algo, entry.Hash)
	if err := s.Repo.Delete(k); err != nil {
		return true, fmt.Errorf("failed to delete bundle: %w", err)
	}
	s.Eviction.Forget(k)
	return true, nil
}
