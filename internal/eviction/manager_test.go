package eviction_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lucasew/seqcache/internal/eviction"
	"github.com/lucasew/seqcache/internal/eviction/lru"
	"github.com/lucasew/seqcache/internal/eviction/policy"
	"github.com/lucasew/seqcache/internal/eviction/policy/maxsize"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]int64
	inUse   map[string]bool
}

func (s *memStore) Walk(fn func(string, int64) error) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, s.entries[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse[key] {
		return eviction.ErrInUse
	}
	delete(s.entries, key)
	return nil
}

func TestManager(t *testing.T) {
	store := &memStore{entries: map[string]int64{
		"intro": 20,
		"loop":  20,
		"outro": 20,
	}}

	mgr := eviction.NewManager("test", []policy.Policy{&maxsize.Policy{MaxBytes: 50}}, 10*time.Millisecond, lru.New())
	mgr.SetStore(store)

	if err := mgr.LoadInitialState(); err != nil {
		t.Fatalf("LoadInitialState failed: %v", err)
	}
	if mgr.CurrentBytes() != 60 {
		t.Fatalf("expected 60 tracked bytes, got %d", mgr.CurrentBytes())
	}

	// Walk is sorted, so "intro" is the least recently added.
	victims := mgr.RunEviction()
	if len(victims) != 1 || victims[0].Key != "intro" {
		t.Fatalf("expected intro to be evicted, got %+v", victims)
	}
	if len(store.entries) != 2 {
		t.Errorf("expected 2 entries remaining, got %d", len(store.entries))
	}

	mgr.Touch("loop")
	store.entries["credits"] = 20
	mgr.Add("credits", 20)

	victims = mgr.RunEviction()
	if len(victims) != 1 || victims[0].Key != "outro" {
		t.Fatalf("expected outro to be evicted, got %+v", victims)
	}
	if mgr.CurrentBytes() != 40 {
		t.Errorf("expected 40 tracked bytes, got %d", mgr.CurrentBytes())
	}

	mgr.Forget("loop")
	if mgr.CurrentBytes() != 20 {
		t.Errorf("expected 20 tracked bytes after Forget, got %d", mgr.CurrentBytes())
	}
}

func TestManager_Unbounded(t *testing.T) {
	store := &memStore{entries: map[string]int64{"a": 1 << 30}}
	mgr := eviction.NewManager("test", []policy.Policy{&maxsize.Policy{}}, 0, lru.New())
	mgr.SetStore(store)
	mgr.Add("a", 1<<30)

	if victims := mgr.RunEviction(); len(victims) != 0 {
		t.Errorf("zero MaxBytes means no limit, got victims %+v", victims)
	}
}

func TestManager_SkipsEntriesInUse(t *testing.T) {
	store := &memStore{
		entries: map[string]int64{"intro": 20, "loop": 20, "outro": 20},
		inUse:   map[string]bool{"intro": true},
	}
	mgr := eviction.NewManager("test", []policy.Policy{&maxsize.Policy{MaxBytes: 50}}, 0, lru.New())
	mgr.SetStore(store)
	if err := mgr.LoadInitialState(); err != nil {
		t.Fatalf("LoadInitialState failed: %v", err)
	}

	victims := mgr.RunEviction()
	if len(victims) != 1 || victims[0].Key != "loop" {
		t.Fatalf("expected loop to be evicted in place of intro, got %+v", victims)
	}
	if _, ok := store.entries["intro"]; !ok {
		t.Error("entry in use was deleted")
	}
	if mgr.CurrentBytes() != 40 {
		t.Errorf("expected 40 tracked bytes, got %d", mgr.CurrentBytes())
	}

	// Once released, the skipped entry is still tracked and goes first.
	store.inUse = nil
	store.entries["credits"] = 20
	mgr.Add("credits", 20)
	victims = mgr.RunEviction()
	if len(victims) != 1 || victims[0].Key != "intro" {
		t.Fatalf("expected intro to be evicted once released, got %+v", victims)
	}
}
