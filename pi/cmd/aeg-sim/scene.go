/*
DESCRIPTION
  scene.go provides the simulated sky and the simulation of a capture
  session against it.

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

package main

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
	"github.com/ausocean/skycam/pi/brightness"
	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/stat"
)

// Simulated frame size.
const (
	frameWidth  = 64
	frameHeight = 48
)

// scene is a uniform sky whose radiance falls exponentially from day to
// night over the run, as at sunset. Radiance is the frame brightness given
// by one second of exposure at unit gain.
type scene struct {
	day, night float64
	frames     int
}

// radiance returns the scene radiance for frame i.
func (s scene) radiance(i int) float64 {
	if s.frames <= 1 {
		return s.day
	}
	return s.day * math.Pow(s.night/s.day, float64(i)/float64(s.frames-1))
}

// frame returns the 8-bit frame captured at frame i with exposure and gain.
func (s scene) frame(i int, exposure time.Duration, gain float64) *image.Gray {
	v := math.Min(s.radiance(i)*exposure.Seconds()*gain, 1)
	img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
	for j := range img.Pix {
		img.Pix[j] = uint8(math.Round(v * 255))
	}
	return img
}

// trace records a simulation, one entry per frame.
type trace struct {
	means     []float64
	levels    []float64
	exposures []float64 // Seconds.
	gains     []float64
}

// simulate runs a capture session against sc starting from exposure and
// gain.
func simulate(l logging.Logger, cfg aeg.Config, sc scene, exposure time.Duration, gain float64) (*trace, error) {
	ctrl := aeg.New(l)
	err := ctrl.Init(cfg, exposure, gain)
	if err != nil {
		return nil, fmt.Errorf("could not initialise controller: %w", err)
	}
	exposure, gain = ctrl.Settings()
	sampler := brightness.NewSampler()

	tr := &trace{}
	for i := 0; i < sc.frames; i++ {
		mean, err := sampler.Mean(brightness.FromImage(sc.frame(i, exposure, gain)))
		if err != nil {
			return nil, fmt.Errorf("could not measure frame %d: %w", i, err)
		}
		tr.means = append(tr.means, mean)
		tr.exposures = append(tr.exposures, exposure.Seconds())
		tr.gains = append(tr.gains, gain)

		exposure, gain = ctrl.Next(mean, exposure, gain)
		tr.levels = append(tr.levels, float64(ctrl.State().Level))
	}
	return tr, nil
}

// summary holds simulation statistics.
type summary struct {
	MeanError float64 // Mean absolute distance from the target.
	StdDev    float64 // Standard deviation of the frame means.
	InBand    int     // Frames within the threshold of the target.
	Frames    int
}

func summarise(tr *trace, target, threshold float64) summary {
	errs := make([]float64, len(tr.means))
	var in int
	for i, m := range tr.means {
		errs[i] = math.Abs(m - target)
		if errs[i] <= threshold {
			in++
		}
	}
	return summary{
		MeanError: stat.Mean(errs, nil),
		StdDev:    stat.StdDev(tr.means, nil),
		InBand:    in,
		Frames:    len(tr.means),
	}
}
