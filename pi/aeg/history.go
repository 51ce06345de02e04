/*
DESCRIPTION
  history.go provides the ring buffers of recent frame means and exposure
  levels, and the weighted forecast of where the mean is heading.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses.
*/

package aeg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// HistoryCapacity is the physical size of the history ring buffers. A
// configured history size may not exceed it.
const HistoryCapacity = 5

// Forecast holds the result of a History forecast.
type Forecast struct {
	NewMean      float64 // Recency weighted mean of the history and forecast.
	Delta        float64 // |NewMean - target|.
	MeanForecast float64 // Linear extrapolation of the next mean.
}

// History holds the last n measured means and the exposure levels used for
// them. Index i of each buffer holds the sample from count-n+i (mod n).
type History struct {
	means  [HistoryCapacity]float64
	levels [HistoryCapacity]int
	n      int // Logical size.
	count  int // Frames measured so far.

	// Scratch space for the weighted mean; the last element is the forecast.
	x, w [HistoryCapacity + 1]float64
}

// NewHistory returns a History of logical size n with every entry pre-filled
// with mean and level.
func NewHistory(n int, mean float64, level int) (*History, error) {
	if n < 1 || n > HistoryCapacity {
		return nil, fmt.Errorf("%w: history size %d not in range [1, %d]", ErrConfig, n, HistoryCapacity)
	}
	h := &History{n: n}
	for i := 0; i < n; i++ {
		h.means[i] = mean
		h.levels[i] = level
		h.w[i] = float64(i + 1)
	}
	h.w[n] = float64(n)
	return h, nil
}

// Record stores the mean of the most recent frame.
func (h *History) Record(mean float64) { h.means[h.count%h.n] = mean }

// Commit stores the exposure level chosen for the next frame and advances the
// measurement count.
func (h *History) Commit(level int) {
	h.count++
	h.levels[h.count%h.n] = level
}

// Count returns the number of committed measurements.
func (h *History) Count() int { return h.count }

// Size returns the logical size of the history.
func (h *History) Size() int { return h.n }

// latest returns the indices of the newest and second newest samples.
func (h *History) latest() (idx, prev int) {
	return h.count % h.n, (h.count + h.n - 1) % h.n
}

// Forecast extrapolates the next mean from the two newest samples, clamped to
// [0, ceiling], and folds it into a recency weighted mean of the history. The
// oldest sample has weight 1, the newest weight n and the forecast weight n.
func (h *History) Forecast(target, ceiling float64) Forecast {
	idx, prev := h.latest()
	f := math.Min(math.Max(2*h.means[idx]-h.means[prev], 0), ceiling)

	for i := 1; i <= h.n; i++ {
		h.x[i-1] = h.means[(h.count+i)%h.n]
	}
	h.x[h.n] = f
	m := stat.Mean(h.x[:h.n+1], h.w[:h.n+1])

	return Forecast{NewMean: m, Delta: math.Abs(m - target), MeanForecast: f}
}

// Settled reports whether the two newest means are strictly within threshold
// of target.
func (h *History) Settled(target, threshold float64) bool {
	idx, prev := h.latest()
	return math.Abs(h.means[idx]-target) < threshold && math.Abs(h.means[prev]-target) < threshold
}

// Means returns the committed means, oldest first.
func (h *History) Means() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.means[(h.count+i)%h.n]
	}
	return out
}

// Levels returns the committed exposure levels, oldest first. The last one is
// the level for the next frame.
func (h *History) Levels() []int {
	out := make([]int, h.n)
	for i := range out {
		out[i] = h.levels[(h.count+i+1)%h.n]
	}
	return out
}
