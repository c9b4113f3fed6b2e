package eviction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucasew/seqcache/internal/eviction/policy"
)

// Manager keeps a Store within the limits of its policies.
type Manager struct {
	name         string
	store        Store
	policies     []policy.Policy
	strategy     Strategy
	currentBytes atomic.Int64
	interval     time.Duration
	runMu        sync.Mutex
}

// NewManager creates a Manager. name only shows up in logs.
func NewManager(name string, policies []policy.Policy, interval time.Duration, strategy Strategy) *Manager {
	return &Manager{
		name:     name,
		policies: policies,
		interval: interval,
		strategy: strategy,
	}
}

// SetStore sets the storage the manager evicts from.
func (m *Manager) SetStore(store Store) {
	m.store = store
}

// LoadInitialState walks the store and feeds every entry to the strategy.
func (m *Manager) LoadInitialState() error {
	if m.store == nil {
		return fmt.Errorf("store not initialized")
	}

	var totalSize int64
	var count int

	err := m.store.Walk(func(key string, size int64) error {
		totalSize += m.strategy.OnAdd(key, size)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", m.name, err)
	}

	m.currentBytes.Store(totalSize)
	slog.Info("Initial cache state loaded", "cache", m.name, "count", count, "size", totalSize)
	return nil
}

// Start runs RunEviction every interval until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunEviction()
		}
	}
}

// Add records a new or resized entry.
func (m *Manager) Add(key string, size int64) {
	diff := m.strategy.OnAdd(key, size)
	m.currentBytes.Add(diff)
}

// Touch marks key as recently used.
func (m *Manager) Touch(key string) {
	m.strategy.OnAccess(key)
}

// Forget stops tracking an entry the store already dropped on its own.
func (m *Manager) Forget(key string) {
	m.currentBytes.Add(-m.strategy.Remove(key))
}

// Reset forgets every tracked entry.
func (m *Manager) Reset(keys []string) {
	for _, k := range keys {
		m.Forget(k)
	}
}

// CurrentBytes returns the tracked size.
func (m *Manager) CurrentBytes() int64 {
	return m.currentBytes.Load()
}

// RunEviction asks every policy how much to free, then deletes victims
// until the largest demand is met. It returns what was evicted.
func (m *Manager) RunEviction() []Victim {
	if m.store == nil {
		slog.Error("Store not initialized", "cache", m.name)
		return nil
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	current := m.currentBytes.Load()
	maxToFree := policy.Largest(m.policies, current)
	if maxToFree <= 0 {
		return nil
	}

	targetSize := max(current-maxToFree, 0)

	// Candidates run down to zero so entries in use can be skipped
	// without falling short of the target.
	candidates := m.strategy.GetVictims(current, 0)
	if len(candidates) == 0 {
		return nil
	}

	slog.Info("Evicting entries", "cache", m.name, "current_size", current, "to_free", maxToFree, "target", targetSize)

	var evicted []Victim
	var freed int64
	for _, victim := range candidates {
		if freed >= maxToFree {
			break
		}
		err := m.store.Delete(victim.Key)
		if errors.Is(err, ErrInUse) {
			slog.Debug("Skipping entry in use", "cache", m.name, "key", victim.Key)
			continue
		}
		if err != nil {
			slog.Error("Failed to evict entry", "cache", m.name, "key", victim.Key, "error", err)
			continue
		}
		m.Forget(victim.Key)
		freed += victim.Size
		evicted = append(evicted, victim)
	}
	if freed < maxToFree {
		slog.Warn("Could not free enough space", "cache", m.name, "freed", freed, "to_free", maxToFree)
	}
	return evicted
}
