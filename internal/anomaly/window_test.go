package anomaly

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRollingWindowStats(t *testing.T) {
	w := NewRollingWindow(5)
	now := time.Now()
	for i, v := range []float64{2, 4, 6} {
		w.Append(now.Add(time.Duration(i)*time.Second), v)
	}
	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	if !almostEqual(w.Mean(), 4) {
		t.Fatalf("mean = %v, want 4", w.Mean())
	}
	// population variance of {2,4,6}
	if !almostEqual(w.Variance(), 8.0/3.0) {
		t.Fatalf("variance = %v, want %v", w.Variance(), 8.0/3.0)
	}
}

func TestRollingWindowEvictsOldest(t *testing.T) {
	w := NewRollingWindow(3)
	now := time.Now()
	for i, v := range []float64{1, 2, 3, 4, 5} {
		w.Append(now.Add(time.Duration(i)*time.Second), v)
	}
	if w.Len() != 3 {
		t.Fatalf("len = %d, want 3", w.Len())
	}
	got := w.Values()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values = %v, want %v", got, want)
		}
	}
	if !almostEqual(w.Mean(), 4) {
		t.Fatalf("mean after eviction = %v, want 4", w.Mean())
	}
	if !almostEqual(w.Variance(), 2.0/3.0) {
		t.Fatalf("variance after eviction = %v, want %v", w.Variance(), 2.0/3.0)
	}
	last, ok := w.Last()
	if !ok || last != 5 {
		t.Fatalf("last = %v, %v", last, ok)
	}
}

func TestRollingWindowStatsMatchRecompute(t *testing.T) {
	w := NewRollingWindow(16)
	now := time.Now()
	vals := []float64{3.5, -2, 100, 41.25, 0, 0, 7, -33, 12, 12, 12, 55.5, 1e6, -1e6, 3, 9, 27, 81}
	for i, v := range vals {
		w.Append(now.Add(time.Duration(i)*time.Second), v)
	}

	kept := vals[len(vals)-16:]
	var mean float64
	for _, v := range kept {
		mean += v
	}
	mean /= float64(len(kept))
	var m2 float64
	for _, v := range kept {
		m2 += (v - mean) * (v - mean)
	}
	wantVar := m2 / float64(len(kept))

	if math.Abs(w.Mean()-mean) > 1e-6 {
		t.Fatalf("mean = %v, want %v", w.Mean(), mean)
	}
	if math.Abs(w.Variance()-wantVar)/wantVar > 1e-6 {
		t.Fatalf("variance = %v, want %v", w.Variance(), wantVar)
	}
}

func TestRollingWindowConstantSeriesHasZeroVariance(t *testing.T) {
	w := NewRollingWindow(4)
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Append(now.Add(time.Duration(i)*time.Second), 42)
	}
	if w.Variance() != 0 {
		t.Fatalf("variance = %v, want 0", w.Variance())
	}
}
