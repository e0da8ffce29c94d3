package utils

import "gonum.org/v1/gonum/floats"

// RollingAverage is a fixed-size moving average. Unfilled slots count as zero, so the average
// ramps up over the first NumSamples additions.
type RollingAverage struct {
	data []float64
	pos  int
}

// NewRollingAverage returns a RollingAverage over numSamples values. numSamples below 1 is
// treated as 1.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples), pos: 0}
}

// NumSamples returns the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add pushes x, overwriting the oldest sample.
func (ra *RollingAverage) Add(x float64) {
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
}

// Average returns the mean of the window.
func (ra *RollingAverage) Average() float64 {
	return floats.Sum(ra.data) / float64(len(ra.data))
}

// Reset zeroes every sample.
func (ra *RollingAverage) Reset() {
	for i := range ra.data {
		ra.data[i] = 0
	}
	ra.pos = 0
}
