package app

import (
	"github.com/lucasew/seqcache/internal/config"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/provider"
	"github.com/lucasew/seqcache/internal/sequence"
	"github.com/lucasew/seqcache/internal/tick"
)

// CacheOptions maps the settings onto sequence cache options.
func CacheOptions(s config.Settings, sched tick.Scheduler, tracker *frame.Tracker) []sequence.Option {
	return []sequence.Option{
		sequence.WithDecoder(frame.NewDecoder(tracker)),
		sequence.WithScheduler(sched),
		sequence.WithBatchSize(s.BatchSize),
		sequence.WithMaxMemory(s.MaxCacheBytes()),
		sequence.WithMemoryReport(s.ShowMemoryUsage),
	}
}

// NewCache creates the cache over the sequences directory of s.
func NewCache(s config.Settings, sched tick.Scheduler, tracker *frame.Tracker) *sequence.Cache {
	source := sequence.NewDirSource(s.SequencesRoot)
	return sequence.NewCache(source, CacheOptions(s, sched, tracker)...)
}

// NewProvider creates a label provider reading bundles from store. Bundle
// frames are decoded batch_size at a time.
func NewProvider(store *Store, s config.Settings, tracker *frame.Tracker) *provider.Provider {
	backend := provider.NewBundleBackend(store.Catalog, store.Repo, store.Upstreams, frame.NewDecoder(tracker), s.BatchSize)
	return provider.New(backend, CacheOptions(s, tick.NewRealtime(0), tracker)...)
}
