package anomaly

import (
	"math"
	"time"
)

// RollingWindow is a fixed-capacity ring of recent observations with
// incrementally maintained mean and variance. Appends and evictions are O(1);
// statistics are never recomputed from scratch.
//
// Variance convention: population (M2/n). Documented here because it shifts
// anomaly thresholds measurably versus the sample convention.
type RollingWindow struct {
	values   []float64
	times    []time.Time
	head     int
	count    int
	capacity int

	mean float64
	m2   float64
}

func NewRollingWindow(capacity int) *RollingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingWindow{
		values:   make([]float64, capacity),
		times:    make([]time.Time, capacity),
		capacity: capacity,
	}
}

// Append adds a value, evicting strictly the oldest entry on overflow.
func (w *RollingWindow) Append(ts time.Time, v float64) {
	if w.count == w.capacity {
		w.removeStat(w.values[w.head])
		w.values[w.head] = v
		w.times[w.head] = ts
		w.head = (w.head + 1) % w.capacity
		w.count--
	} else {
		idx := (w.head + w.count) % w.capacity
		w.values[idx] = v
		w.times[idx] = ts
	}
	w.count++
	w.addStat(v)
}

// addStat folds x into the running mean/M2; count already includes x.
func (w *RollingWindow) addStat(x float64) {
	d := x - w.mean
	w.mean += d / float64(w.count)
	w.m2 += d * (x - w.mean)
}

// removeStat unfolds x from the running mean/M2; count still includes x.
func (w *RollingWindow) removeStat(x float64) {
	if w.count <= 1 {
		w.mean = 0
		w.m2 = 0
		return
	}
	d := x - w.mean
	w.mean -= d / float64(w.count-1)
	w.m2 -= d * (x - w.mean)
	if w.m2 < 0 {
		w.m2 = 0 // float drift guard
	}
}

// Len returns the number of buffered values; never exceeds capacity.
func (w *RollingWindow) Len() int { return w.count }

// Capacity returns the configured maximum size.
func (w *RollingWindow) Capacity() int { return w.capacity }

// Mean returns the rolling mean.
func (w *RollingWindow) Mean() float64 { return w.mean }

// Variance returns the population variance of the window.
func (w *RollingWindow) Variance() float64 {
	if w.count == 0 {
		return 0
	}
	return w.m2 / float64(w.count)
}

// StdDev returns the population standard deviation.
func (w *RollingWindow) StdDev() float64 { return math.Sqrt(w.Variance()) }

// Last returns the newest value, if any.
func (w *RollingWindow) Last() (float64, bool) {
	if w.count == 0 {
		return 0, false
	}
	idx := (w.head + w.count - 1) % w.capacity
	return w.values[idx], true
}

// Values returns a chronological copy of the window contents.
func (w *RollingWindow) Values() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.values[(w.head+i)%w.capacity]
	}
	return out
}
