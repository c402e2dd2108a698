package testutil

import (
	"math"
	"testing"

	"github.com/devs-sim/devs-sim/sim"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t testing.TB, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertTimeEqual compares two simulated times exactly, across units.
func AssertTimeEqual(t testing.TB, name string, want, got sim.Time) {
	t.Helper()
	if !want.Equal(got) {
		t.Errorf("%s: got %s, want %s", name, got, want)
	}
}

// Seconds is shorthand for a time in seconds.
func Seconds(n int64) sim.Time { return sim.NewTime(n, sim.Second) }
