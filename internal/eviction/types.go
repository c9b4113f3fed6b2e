package eviction

import "errors"

// ErrInUse is returned by Store.Delete for an entry that cannot go yet.
// The manager keeps tracking it and picks it again on a later run.
var ErrInUse = errors.New("entry in use")

// Victim is an entry chosen for eviction.
type Victim struct {
	Key  string
	Size int64
}

// Store is the storage an eviction Manager trims. Keys are whatever the store
// uses to name an entry: a sequence name for the in-memory cache, a content
// hash for the bundle repository.
type Store interface {
	// Walk visits every entry currently held by the store.
	Walk(fn func(key string, size int64) error) error
	// Delete drops the entry. Deleting a missing key is not an error.
	// Entries that must stay return ErrInUse.
	Delete(key string) error
}

// Strategy decides which entries go first.
type Strategy interface {
	// OnAdd records key with its size and returns the change in tracked bytes.
	OnAdd(key string, size int64) int64

	// OnAccess marks key as used.
	OnAccess(key string)

	// GetVictims picks entries whose removal brings currentSize down to
	// targetSize or below.
	GetVictims(currentSize int64, targetSize int64) []Victim

	// Remove forgets key and returns the bytes it was tracked with.
	Remove(key string) int64
}
