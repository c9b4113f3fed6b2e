// Package natsort orders strings the way people expect embedded numbers to
// sort: "frame2.png" before "frame10.png".
//
// Strings are split into maximal runs of ASCII digits and non-digits. Digit
// runs are compared by numeric value, everything else byte-wise. When every
// compared run is equal the shorter string sorts first.
package natsort

import (
	"slices"
	"strings"
)

// Compare returns -1, 0 or +1. The empty string sorts before any non-empty one.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, na := chunk(a, i)
		cb, nb := chunk(b, j)
		i, j = na, nb

		var c int
		if isDigit(ca[0]) && isDigit(cb[0]) {
			c = compareNumeric(ca, cb)
		} else {
			c = strings.Compare(ca, cb)
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// ComparePtr is Compare for optional strings: nil sorts before everything,
// and two nils are equal.
func ComparePtr(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return Compare(*a, *b)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Strings sorts s in place in natural order.
func Strings(s []string) {
	slices.SortStableFunc(s, Compare)
}

// chunk returns the run of same-class bytes starting at start and the index
// just past it.
func chunk(s string, start int) (string, int) {
	digit := isDigit(s[start])
	end := start + 1
	for end < len(s) && isDigit(s[end]) == digit {
		end++
	}
	return s[start:end], end
}

// compareNumeric compares two digit runs by value without parsing them, so
// runs longer than an int64 still order correctly.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
