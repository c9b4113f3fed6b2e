// Package policy decides how much a cache must shrink.
package policy

import "log/slog"

// Policy reports how many bytes a cache of currentSize must drop.
type Policy interface {
	// BytesToFree returns 0 when the cache is within bounds.
	BytesToFree(currentSize int64) (int64, error)
}

// Largest returns the biggest demand among policies. A policy that fails is
// logged and skipped so the others still apply.
func Largest(policies []Policy, currentSize int64) int64 {
	var largest int64
	for _, p := range policies {
		toFree, err := p.BytesToFree(currentSize)
		if err != nil {
			slog.Error("Failed to check capacity policy", "error", err)
			continue
		}
		largest = max(largest, toFree)
	}
	return largest
}
