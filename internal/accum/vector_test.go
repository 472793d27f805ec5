package accum

import (
	"math"
	"testing"
	"time"
)

// TestVector_DayVecAvgDirection verifies the day dominant direction for a
// steady wind from a single bearing.
func TestVector_DayVecAvgDirection(t *testing.T) {
	v := NewVector(10 * time.Minute)
	for i := 0; i < 5; i++ {
		v.AddValue(f(10), f(90), t0.Add(time.Duration(i)*time.Minute))
	}
	_, dir := v.DayVecAvg()
	if math.Abs(dir-90) > 0.001 {
		t.Fatalf("dominant direction = %v, want 90", dir)
	}
}

// TestVector_GustFromHistory verifies the trailing-window gust picks the
// maximum magnitude inside the window and ignores older entries.
func TestVector_GustFromHistory(t *testing.T) {
	v := NewVector(time.Hour)
	v.AddValue(f(40), f(180), t0)
	v.AddValue(f(12), f(185), t0.Add(25*time.Minute))
	v.AddValue(f(18), f(190), t0.Add(28*time.Minute))

	now := t0.Add(30 * time.Minute)
	gust, _, ok := v.HistoryMax(now, 10*time.Minute)
	if !ok || gust != 18 {
		t.Fatalf("10-minute gust = %v, %v, want 18, true", gust, ok)
	}
	gust, _, _ = v.HistoryMax(now, time.Hour)
	if gust != 40 {
		t.Fatalf("60-minute gust = %v, want 40", gust)
	}
}

// TestVector_AbsentMagnitude verifies a nil magnitude leaves all statistics
// untouched.
func TestVector_AbsentMagnitude(t *testing.T) {
	v := NewVector(time.Minute)
	v.AddValue(f(7), f(45), t0)
	v.AddValue(nil, f(90), t0.Add(time.Second))

	mag, dir, _, ok := v.Last()
	if !ok || mag != 7 || dir != 45 {
		t.Fatalf("last = (%v, %v, %v), want (7, 45, true)", mag, dir, ok)
	}
}

// TestVector_MissingDirection verifies a value without direction updates
// scalar stats but stays out of the direction history.
func TestVector_MissingDirection(t *testing.T) {
	v := NewVector(time.Hour)
	v.AddValue(f(22), nil, t0)

	max, _, _, ok := v.Max()
	if !ok || max != 22 {
		t.Fatalf("max = %v, %v, want 22, true", max, ok)
	}
	if _, _, ok := v.HistoryVecAvg(t0.Add(time.Second), time.Hour); ok {
		t.Fatalf("direction history populated from a directionless value")
	}
}

// TestVector_DayReset verifies reset clears day stats and a following value
// seeds min == max.
func TestVector_DayReset(t *testing.T) {
	v := NewVector(0)
	v.AddValue(f(5), f(10), t0)
	v.AddValue(f(25), f(20), t0.Add(time.Minute))
	v.DayReset()

	if _, _, _, ok := v.Max(); ok {
		t.Fatalf("max still set after day reset")
	}
	v.AddValue(f(9), f(30), t0.Add(2*time.Minute))
	max, dir, _, _ := v.Max()
	if max != 9 || dir != 30 {
		t.Fatalf("after reset max = %v from %v, want 9 from 30", max, dir)
	}
}

// TestVector_BearingRange verifies the range brackets the directions seen
// in the window, handling the north wraparound.
func TestVector_BearingRange(t *testing.T) {
	v := NewVector(time.Hour)
	v.AddValue(f(10), f(350), t0)
	v.AddValue(f(10), f(10), t0.Add(time.Minute))
	v.AddValue(f(10), f(20), t0.Add(2*time.Minute))

	from, to := v.BearingRange(t0.Add(3*time.Minute), 10*time.Minute, 5)
	if from != 350 || to != 20 {
		t.Fatalf("bearing range = (%v, %v), want (350, 20)", from, to)
	}
}

// TestVector_ReseedKeepsStricterMax verifies reseed only adopts a higher
// authoritative maximum.
func TestVector_ReseedKeepsStricterMax(t *testing.T) {
	v := NewVector(0)
	v.AddValue(f(30), f(270), t0)

	v.Reseed(f(20), t0.Add(-time.Hour))
	if max, _, _, _ := v.Max(); max != 30 {
		t.Fatalf("max = %v after looser reseed, want 30", max)
	}
	v.Reseed(f(35), t0.Add(-time.Hour))
	if max, _, _, _ := v.Max(); max != 35 {
		t.Fatalf("max = %v after stricter reseed, want 35", max)
	}
}
