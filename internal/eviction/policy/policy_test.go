package policy_test

import (
	"errors"
	"testing"

	"github.com/lucasew/seqcache/internal/eviction/policy"
	"github.com/lucasew/seqcache/internal/eviction/policy/maxsize"
)

type failing struct{}

func (failing) BytesToFree(int64) (int64, error) {
	return 0, errors.New("statfs failed")
}

func TestLargest(t *testing.T) {
	policies := []policy.Policy{
		&maxsize.Policy{MaxBytes: 80},
		failing{},
		&maxsize.Policy{MaxBytes: 50},
	}
	if got := policy.Largest(policies, 100); got != 50 {
		t.Errorf("Expected 50, got %d", got)
	}
	if got := policy.Largest(policies, 40); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
	if got := policy.Largest(nil, 100); got != 0 {
		t.Errorf("Expected 0 without policies, got %d", got)
	}
}
