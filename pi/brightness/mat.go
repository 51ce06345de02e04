//go:build withcv
// +build withcv

/*
DESCRIPTION
  mat.go provides an OpenCV backed brightness sampler for frames held in
  gocv Mats.

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

package brightness

import (
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// MatSampler computes the same region of interest mean as Sampler for
// frames held in gocv Mats. Masks are cached per resolution and released by
// Close.
type MatSampler struct {
	mu    sync.Mutex
	masks map[image.Point]gocv.Mat
}

// NewMatSampler returns a new MatSampler.
func NewMatSampler() *MatSampler {
	return &MatSampler{masks: make(map[image.Point]gocv.Mat)}
}

// Mean returns the mean brightness of m in [0,1].
func (s *MatSampler) Mean(m gocv.Mat) (float64, error) {
	if m.Empty() || m.Rows() <= 0 || m.Cols() <= 0 {
		return 0, ErrInvalidFrame
	}

	var depth int
	switch m.Type() & 7 {
	case gocv.MatTypeCV8U:
		depth = 8
	case gocv.MatTypeCV16U:
		depth = 16
	}
	scale, err := fullScale(depth)
	if err != nil {
		return 0, err
	}

	mean := m.MeanWithMask(s.mask(m.Cols(), m.Rows()))
	switch m.Channels() {
	case 3, 4:
		return (mean.Val1 + mean.Val2 + mean.Val3) / 3 / scale, nil
	default:
		return mean.Val1 / scale, nil
	}
}

func (s *MatSampler) mask(w, h int) gocv.Mat {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := image.Pt(w, h)
	if m, ok := s.masks[key]; ok {
		return m
	}
	m := gocv.Zeros(h, w, gocv.MatTypeCV8U)
	gocv.Circle(&m, image.Pt(w/2, h/2), h/3, color.RGBA{255, 255, 255, 0}, -1)
	s.masks[key] = m
	return m
}

// Close releases the cached masks.
func (s *MatSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range s.masks {
		m.Close()
		delete(s.masks, k)
	}
	return nil
}
