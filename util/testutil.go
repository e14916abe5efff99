package util

import "testing"

// TestLoopLength picks how many iterations a fuzz-style test should run:
// the short count when the tests run with -short, the long count
// otherwise.
func TestLoopLength(t *testing.T, short, long int) int {
	if testing.Short() {
		return short
	}
	return long
}

// Shorten abbreviates an identifier for log lines, the way the teacher's
// node names got abbreviated into "comment" strings for display.
func Shorten(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
