/*
DESCRIPTION
  aeg-sim runs the exposure/gain controller against a simulated sunset and
  reports how well frame brightness tracks the target.

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

// aeg-sim simulates automatic exposure and gain control of an all-sky camera
// through a sunset, printing tracking statistics and optionally plotting the
// frame means and exposure levels.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
	"github.com/ausocean/utils/logging"
)

func main() {
	var (
		frames    = flag.Int("frames", 200, "number of frames to simulate")
		day       = flag.Float64("day", 1e4, "scene radiance at the first frame")
		night     = flag.Float64("night", 1e-2, "scene radiance at the last frame")
		target    = flag.Float64("target", 0.5, "target frame mean")
		threshold = flag.Float64("threshold", 0.1, "allowed distance from the target mean")
		steps     = flag.Int("steps", 6, "shutter steps")
		history   = flag.Int("history", 3, "history size")
		minExp    = flag.Duration("min-exposure", 32*time.Microsecond, "minimum exposure time")
		maxExp    = flag.Duration("max-exposure", 60*time.Second, "maximum exposure time")
		minGain   = flag.Float64("min-gain", 1, "minimum gain")
		maxGain   = flag.Float64("max-gain", 16, "maximum gain")
		exposure  = flag.Duration("exposure", 10*time.Millisecond, "starting exposure time")
		gain      = flag.Float64("gain", 1, "starting gain")
		plotDir   = flag.String("plots", "", "directory to write plots to, none if empty")
		verbose   = flag.Bool("v", false, "log controller decisions")
	)
	flag.Parse()

	level := logging.Warning
	if *verbose {
		level = logging.Debug
	}
	log := logging.New(level, os.Stderr, false)

	cfg := aeg.Config{
		TargetMean:    *target,
		MeanThreshold: *threshold,
		ShutterSteps:  *steps,
		HistorySize:   *history,
		P0:            5,
		P1:            20,
		P2:            45,
		AutoExposure:  true,
		AutoGain:      true,
		MinExposure:   *minExp,
		MaxExposure:   *maxExp,
		MinGain:       *minGain,
		MaxGain:       *maxGain,
	}

	tr, err := simulate(log, cfg, scene{day: *day, night: *night, frames: *frames}, *exposure, *gain)
	if err != nil {
		log.Fatal("simulation failed", "error", err)
	}

	s := summarise(tr, *target, *threshold)
	fmt.Printf("frames: %d\nin band: %d (%.1f%%)\nmean error: %.4f\nmean std dev: %.4f\n",
		s.Frames, s.InBand, 100*float64(s.InBand)/float64(s.Frames), s.MeanError, s.StdDev)

	if *plotDir == "" {
		return
	}
	err = os.MkdirAll(*plotDir, 0755)
	if err != nil {
		log.Fatal("could not create plot directory", "error", err)
	}
	err = plotTrace(*plotDir, tr, *target)
	if err != nil {
		log.Fatal("could not plot trace", "error", err)
	}
}
