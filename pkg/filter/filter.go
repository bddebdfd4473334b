// Package filter provides fixed-capacity smoothing filters for integer
// sensor channels. Channels carrying fractional values (temperature,
// humidity, pressure) are pushed scaled by 100 so two decimal places
// survive the integer window.
package filter

import (
	"fmt"
	"sort"
)

const (
	// MaxWindow bounds the backing storage of every filter.
	MaxWindow = 16
	// DefaultWindow is the number of samples averaged between publishes.
	DefaultWindow = 10
)

// Filter smooths one channel. Push adds a sample and returns the smoothed
// value over the current window; Reset discards history so the next window
// starts empty (required when calibration changes invalidate old samples).
type Filter interface {
	Push(v int) int
	Reset()
}

// Names accepted by ForName.
const (
	NameAverage = "average"
	NameMedian  = "median"
)

// ForName returns the filter implementation registered under name. An empty
// name selects the moving average.
func ForName(name string, window int) (Filter, error) {
	switch name {
	case "", NameAverage:
		return NewAverage(window), nil
	case NameMedian:
		return NewMedian(window), nil
	}
	return nil, fmt.Errorf("unknown filter %q", name)
}

// Average is a moving average over the last N pushed values. Before the
// window fills it averages however many values have been pushed, so the
// first push returns exactly that value.
type Average struct {
	values [MaxWindow]int
	window int
	idx    int
	count  int
}

// NewAverage creates a moving average with the given window size, clamped
// to [1, MaxWindow]. A non-positive window selects DefaultWindow.
func NewAverage(window int) *Average {
	return &Average{window: clampWindow(window)}
}

// Push adds a sample and returns the integer mean of the current window.
func (a *Average) Push(v int) int {
	a.values[a.idx] = v
	a.idx = (a.idx + 1) % a.window
	if a.count < a.window {
		a.count++
	}

	sum := 0
	for _, s := range a.values[:a.count] {
		sum += s
	}
	return sum / a.count
}

// Reset clears the window.
func (a *Average) Reset() {
	a.idx = 0
	a.count = 0
}

// Window returns the configured window size.
func (a *Average) Window() int { return a.window }

// Median keeps the last N values and returns the median of the current
// window. More robust than the average against single-sample spikes.
type Median struct {
	values  [MaxWindow]int
	scratch [MaxWindow]int
	window  int
	idx     int
	count   int
}

// NewMedian creates a median filter with the given window size, clamped to
// [1, MaxWindow]. A non-positive window selects DefaultWindow.
func NewMedian(window int) *Median {
	return &Median{window: clampWindow(window)}
}

// Push adds a sample and returns the median of the current window.
func (m *Median) Push(v int) int {
	m.values[m.idx] = v
	m.idx = (m.idx + 1) % m.window
	if m.count < m.window {
		m.count++
	}

	s := m.scratch[:m.count]
	copy(s, m.values[:m.count])
	sort.Ints(s)
	return s[m.count/2]
}

// Reset clears the window.
func (m *Median) Reset() {
	m.idx = 0
	m.count = 0
}

func clampWindow(window int) int {
	if window <= 0 {
		window = DefaultWindow
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	return window
}
