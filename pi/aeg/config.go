/*
DESCRIPTION
  config.go holds the per-session configuration of the exposure/gain
  controller and its validation.

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
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrConfig is wrapped by every configuration error. Configuration errors are
// fatal for a session.
var ErrConfig = errors.New("invalid controller config")

// AutoMode describes which of exposure and gain are under automatic control.
type AutoMode int

// Auto modes.
const (
	AutoOff AutoMode = iota
	AutoGainOnly
	AutoExposureOnly
	AutoBoth
)

// NewAutoMode returns the AutoMode for the auto exposure and auto gain flags.
func NewAutoMode(autoExposure, autoGain bool) AutoMode {
	switch {
	case autoExposure && autoGain:
		return AutoBoth
	case autoGain:
		return AutoGainOnly
	case autoExposure:
		return AutoExposureOnly
	default:
		return AutoOff
	}
}

func (m AutoMode) String() string {
	switch m {
	case AutoOff:
		return "Off"
	case AutoGainOnly:
		return "GainOnly"
	case AutoExposureOnly:
		return "ExposureOnly"
	case AutoBoth:
		return "Both"
	default:
		return fmt.Sprintf("AutoMode(%d)", int(m))
	}
}

// autoGain reports whether gain is under automatic control.
func (m AutoMode) autoGain() bool { return m == AutoBoth || m == AutoGainOnly }

// autoExposure reports whether exposure time is under automatic control.
func (m AutoMode) autoExposure() bool { return m == AutoBoth || m == AutoExposureOnly }

// Config is the configuration of a capture session. It is fixed for the life
// of the session; changing it requires a new call to Controller.Init.
type Config struct {
	TargetMean    float64 // Desired mean brightness in [0,1].
	MeanThreshold float64 // Tolerance either side of TargetMean.
	ShutterSteps  int     // Exposure level resolution; there are ShutterSteps² levels per stop.
	HistorySize   int     // Number of frames considered by the forecast.

	// Correction magnitude polynomial coefficients.
	P0, P1, P2 float64

	AutoExposure bool
	AutoGain     bool

	MinExposure, MaxExposure time.Duration
	MinGain, MaxGain         float64

	// Quickstart is the number of initial frames captured at the quickstart
	// rate. It is cleared by the first frame inside the target band.
	Quickstart int
}

// Mode returns the AutoMode implied by c.
func (c Config) Mode() AutoMode { return NewAutoMode(c.AutoExposure, c.AutoGain) }

// Validate checks c, returning all problems found. Each wraps ErrConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrConfig}, args...)...))
	}

	if c.TargetMean < 0 || c.TargetMean > 1 {
		bad("target mean %v not in range [0, 1]", c.TargetMean)
	}
	if c.MeanThreshold < 0 {
		bad("negative mean threshold %v", c.MeanThreshold)
	}
	if c.ShutterSteps < 1 {
		bad("shutter steps %d must be positive", c.ShutterSteps)
	}
	if c.HistorySize < 1 || c.HistorySize > HistoryCapacity {
		bad("history size %d not in range [1, %d]", c.HistorySize, HistoryCapacity)
	}
	if c.P0 < 0 || c.P1 < 0 || c.P2 < 0 {
		bad("negative tuning coefficient (p0=%v, p1=%v, p2=%v)", c.P0, c.P1, c.P2)
	}
	if !finite(c.P0) || !finite(c.P1) || !finite(c.P2) {
		bad("non-finite tuning coefficient (p0=%v, p1=%v, p2=%v)", c.P0, c.P1, c.P2)
	}
	if c.MinExposure <= 0 || c.MaxExposure <= 0 {
		bad("exposure bounds must be positive (min=%v, max=%v)", c.MinExposure, c.MaxExposure)
	} else if c.MinExposure > c.MaxExposure {
		bad("min exposure %v above max exposure %v", c.MinExposure, c.MaxExposure)
	}
	if c.MinGain <= 0 || c.MaxGain <= 0 {
		bad("gain bounds must be positive (min=%v, max=%v)", c.MinGain, c.MaxGain)
	} else if c.MinGain > c.MaxGain {
		bad("min gain %v above max gain %v", c.MinGain, c.MaxGain)
	}
	if c.Quickstart < 0 {
		bad("negative quickstart count %d", c.Quickstart)
	}
	return errors.Join(errs...)
}

// levelBounds returns the lowest and highest exposure levels reachable in
// the configured mode, each with one level of slack.
func (c Config) levelBounds() (lo, hi int) {
	hi = Level(c.MaxExposure, c.MaxGain, c.ShutterSteps) + 1
	switch c.Mode() {
	case AutoBoth:
		lo = Level(c.MinExposure, c.MinGain, c.ShutterSteps)
	case AutoGainOnly:
		lo = Level(c.MaxExposure, c.MinGain, c.ShutterSteps)
	case AutoExposureOnly:
		lo = Level(c.MinExposure, c.MaxGain, c.ShutterSteps)
	case AutoOff:
		lo = Level(c.MaxExposure, c.MaxGain, c.ShutterSteps)
	}
	return lo - 1, hi
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
