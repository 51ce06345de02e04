/*
DESCRIPTION
  brightness.go provides the frame brightness sampler. The sampler reduces a
  frame to the mean brightness of a centred circular region of interest,
  normalised to [0,1].

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

// Package brightness measures the mean brightness of camera frames.
package brightness

import (
	"errors"
	"image"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Per frame errors. A frame that fails with one of these should be skipped.
var (
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrUnsupportedFormat = errors.New("unsupported frame format")
)

// Frame is the sampler's view of a captured image.
type Frame interface {
	// Size returns the frame width and height in pixels.
	Size() (width, height int)

	// Channels returns the number of samples per pixel.
	Channels() int

	// Depth returns the bits per sample.
	Depth() int

	// Sample returns the value of channel c of the pixel at x, y, where the
	// top left pixel is 0, 0.
	Sample(x, y, c int) uint16
}

// Sampler computes frame means over a circular region of interest. The
// region mask for each resolution is built on first use and cached. A
// Sampler is safe for concurrent use.
type Sampler struct {
	mu    sync.Mutex
	masks map[image.Point][]bool
}

// NewSampler returns a new Sampler.
func NewSampler() *Sampler {
	return &Sampler{masks: make(map[image.Point][]bool)}
}

// Mean returns the mean brightness of f in [0,1]. Frames with three or four
// channels are reduced to the average of the first three channel means, any
// other channel count uses the first channel only.
func (s *Sampler) Mean(f Frame) (float64, error) {
	if f == nil {
		return 0, ErrInvalidFrame
	}
	w, h := f.Size()
	nc := f.Channels()
	if w <= 0 || h <= 0 || nc <= 0 {
		return 0, ErrInvalidFrame
	}
	scale, err := fullScale(f.Depth())
	if err != nil {
		return 0, err
	}

	use := 1
	if nc == 3 || nc == 4 {
		use = 3
	}

	mask := s.mask(w, h)
	var sums [3]float64
	var n int
	for y := 0; y < h; y++ {
		row := mask[y*w : (y+1)*w]
		for x, in := range row {
			if !in {
				continue
			}
			for c := 0; c < use; c++ {
				sums[c] += float64(f.Sample(x, y, c))
			}
			n++
		}
	}

	means := sums[:use]
	for c := range means {
		means[c] /= float64(n)
	}
	return stat.Mean(means, nil) / scale, nil
}

// mask returns the region of interest for a w by h frame: a filled circle
// centred on the frame with a radius of a third of the height.
func (s *Sampler) mask(w, h int) []bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masks == nil {
		s.masks = make(map[image.Point][]bool)
	}
	key := image.Pt(w, h)
	if m, ok := s.masks[key]; ok {
		return m
	}

	m := make([]bool, w*h)
	cx, cy, r := w/2, h/2, h/3
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			m[y*w+x] = dx*dx+dy*dy <= r*r
		}
	}
	s.masks[key] = m
	return m
}

// fullScale returns the largest sample value for the bit depth.
func fullScale(depth int) (float64, error) {
	switch depth {
	case 8:
		return 255, nil
	case 16:
		return 65535, nil
	default:
		return 0, ErrUnsupportedFormat
	}
}
