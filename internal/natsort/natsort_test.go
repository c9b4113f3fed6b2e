package natsort

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"frame2.png", "frame10.png", -1},
		{"frame10.png", "frame2.png", 1},
		{"frame10.png", "frame10.png", 0},
		{"", "a", -1},
		{"a", "", 1},
		{"", "", 0},
		{"a", "b", -1},
		{"z2.png", "z10.png", -1},
		{"a1", "a1b", -1},
		{"a01", "a1", 1},
		{"a_9", "a_10", -1},
		{"10", "9", 1},
		{"abc", "ab1", 1},
		{"99999999999999999999999", "100000000000000000000000", -1},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%q_vs_%q", c.a, c.b), func(t *testing.T) {
			if got := Compare(c.a, c.b); got != c.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestComparePtr(t *testing.T) {
	s := "frame1"
	empty := ""
	if ComparePtr(nil, nil) != 0 {
		t.Error("two absent strings should be equal")
	}
	if ComparePtr(nil, &s) != -1 {
		t.Error("absent should sort before non-empty")
	}
	if ComparePtr(&s, nil) != 1 {
		t.Error("non-empty should sort after absent")
	}
	if ComparePtr(&empty, &s) != -1 {
		t.Error("empty should sort before non-empty")
	}
}

func TestStrings_FrameNames(t *testing.T) {
	var want []string
	for i := 1; i <= 11; i++ {
		want = append(want, fmt.Sprintf("frame%d.png", i))
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		got := slices.Clone(want)
		rng.Shuffle(len(got), func(i, j int) { got[i], got[j] = got[j], got[i] })
		Strings(got)
		if !slices.Equal(got, want) {
			t.Fatalf("round %d: got %v, want %v", round, got, want)
		}
	}

	if !Less("frame2.png", "frame10.png") {
		t.Error("frame2.png should sort before frame10.png")
	}
}
