/*
DESCRIPTION
  controller.go provides the automatic exposure/gain controller. Given the
  mean brightness of the last captured frame it decides the exposure time and
  gain for the next one so that frame brightness converges on a target.

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

// Package aeg provides automatic exposure and gain (AEG) control for a still
// image capture loop.
package aeg

import (
	"math"
	"time"

	"github.com/ausocean/utils/logging"
)

// maxChange is the largest exposure level change made for a single frame.
const maxChange = 75

// Limit reports whether the last correction was blocked by a bound.
type Limit int

// Limits.
const (
	LimitNone    Limit = iota
	LimitCeiling       // Too dark, but gain and exposure are at their maxima.
	LimitFloor         // Too bright, but exposure is at its minimum.
)

func (l Limit) String() string {
	switch l {
	case LimitCeiling:
		return "ceiling"
	case LimitFloor:
		return "floor"
	default:
		return "none"
	}
}

// State is a snapshot of the controller for diagnostics.
type State struct {
	Mode        AutoMode
	Level       int
	LevelMin    int
	LevelMax    int
	FastForward bool
	Quickstart  int
	LastChange  int // Magnitude of the last correction.
	Count       int // Frames measured.
	Limit       Limit
	Forecast    Forecast
}

// Controller is an exposure/gain feedback controller for one capture
// session. It is not safe for concurrent use; it is meant to be driven
// serially by a capture loop, one call to Next per frame.
type Controller struct {
	log logging.Logger

	cfg  Config
	mode AutoMode
	hist *History

	level, levelMin, levelMax int
	fastForward               bool
	quickstart                int
	lastChange                int
	limit                     Limit
	forecast                  Forecast

	// Settings emitted for the next frame.
	exposure time.Duration
	gain     float64
}

// New returns a Controller that logs to l. Init must be called before the
// Controller will make corrections.
func New(l logging.Logger) *Controller {
	return &Controller{log: l}
}

// Init (re)starts a session with cfg, given the exposure time and gain
// currently set on the camera. It must be called again whenever the auto
// exposure or auto gain flags change. History, level bounds and latches are
// reset. On error the Controller is left unchanged.
func (c *Controller) Init(cfg Config, exposure time.Duration, gain float64) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}

	mode := cfg.Mode()
	lo, hi := cfg.levelBounds()
	level := clampInt(Level(exposure, gain, cfg.ShutterSteps)-1, lo, hi)

	hist, err := NewHistory(cfg.HistorySize, cfg.TargetMean, level)
	if err != nil {
		return err
	}

	if mode.autoExposure() {
		exposure = clampDuration(exposure, cfg.MinExposure, cfg.MaxExposure)
	}
	if mode.autoGain() {
		gain = math.Min(math.Max(gain, cfg.MinGain), cfg.MaxGain)
	}

	*c = Controller{
		log:        c.log,
		cfg:        cfg,
		mode:       mode,
		hist:       hist,
		level:      level,
		levelMin:   lo,
		levelMax:   hi,
		quickstart: cfg.Quickstart,
		exposure:   exposure,
		gain:       gain,
	}

	c.log.Info("exposure/gain controller initialised", "mode", mode.String(), "levelMin", lo, "levelMax", hi)
	c.log.Debug("starting settings", "exposure", exposure.String(), "gain", gain, "level", level)
	return nil
}

// Next returns the exposure time and gain for the next frame given the mean
// brightness, in [0,1], of the frame just captured with exposure and gain.
// The returned values are always within the configured bounds for the
// quantities under automatic control. Before Init, Next passes exposure and
// gain through unchanged.
func (c *Controller) Next(prevMean float64, exposure time.Duration, gain float64) (time.Duration, float64) {
	if c.hist == nil {
		return exposure, gain
	}

	target, thresh := c.cfg.TargetMean, c.cfg.MeanThreshold

	c.hist.Record(prevMean)
	c.forecast = c.hist.Forecast(target, c.cfg.MinGain)
	change := c.exposureChange(c.forecast.Delta)
	c.log.Debug("got frame mean", "mean", prevMean, "target", target, "newMean", c.forecast.NewMean,
		"forecast", c.forecast.MeanForecast, "delta", c.forecast.Delta, "change", change)

	c.limit = LimitNone
	changed := false
	switch {
	case prevMean < target-thresh:
		if c.gain < c.cfg.MaxGain || c.exposure < c.cfg.MaxExposure {
			c.level += change
			changed = true
			c.log.Debug("exposure level increased", "by", change, "level", c.level)
			break
		}
		c.limit = LimitCeiling
		c.log.Debug("already at max gain and exposure", "maxGain", c.cfg.MaxGain, "maxExposure", c.cfg.MaxExposure.String())

	case prevMean > target+thresh:
		if c.exposure > c.cfg.MinExposure {
			c.level -= change
			changed = true
			c.log.Debug("exposure level decreased", "by", change, "level", c.level)
			break
		}
		c.limit = LimitFloor
		c.log.Debug("already at min exposure", "minExposure", c.cfg.MinExposure.String())

	default:
		if c.quickstart > 0 {
			c.quickstart = 0
			c.log.Debug("mean within target band, quickstart disabled")
		}
	}

	c.level = clampInt(c.level, c.levelMin, c.levelMax)

	if c.level == c.levelMin || c.level == c.levelMax {
		if !c.fastForward {
			c.log.Debug("fast forward activated", "level", c.level)
		}
		c.fastForward = true
	}
	if c.fastForward && c.hist.Settled(target, thresh) {
		c.fastForward = false
		c.log.Debug("fast forward deactivated")
	}

	if changed {
		c.apply(EffectiveExposure(c.level, c.cfg.ShutterSteps), exposure, gain)
	}

	if c.quickstart > 0 {
		c.quickstart--
	}
	c.hist.Commit(c.level)

	c.log.Debug("next frame settings", "exposure", c.exposure.String(), "gain", c.gain, "level", c.level)
	return c.exposure, c.gain
}

// exposureChange returns the magnitude of the exposure level correction for
// a distance delta between the forecast mean and the target.
func (c *Controller) exposureChange(delta float64) int {
	var v float64
	thresh := c.cfg.MeanThreshold
	switch {
	case c.fastForward || delta > 2*thresh:
		v = math.Max(1, c.cfg.P0+c.cfg.P1*delta+math.Pow(c.cfg.P2*delta, 2))
	case delta > thresh:
		v = math.Max(1, c.cfg.P0+c.cfg.P1*delta)
	default:
		v = float64(c.cfg.ShutterSteps / 2)
	}
	// Capped before conversion; out of range floats do not convert to int.
	change := maxChange
	if v < maxChange {
		change = int(v)
	}
	c.lastChange = change
	return change
}

// apply splits the effective exposure eff (seconds at unit gain) between gain
// and exposure time according to the auto mode. exposure and gain are the
// settings the last frame was captured with.
func (c *Controller) apply(eff float64, exposure time.Duration, gain float64) {
	switch c.mode {
	case AutoBoth, AutoGainOnly:
		c.gain = math.Min(math.Max(eff/exposure.Seconds(), c.cfg.MinGain), c.cfg.MaxGain)
	case AutoExposureOnly, AutoOff:
		c.gain = gain
	}

	switch c.mode {
	case AutoBoth, AutoExposureOnly:
		c.exposure = clampDuration(durationOf(eff/c.gain), c.cfg.MinExposure, c.cfg.MaxExposure)
	case AutoGainOnly, AutoOff:
		// Exposure time is left alone.
	}
}

// Settings returns the exposure time and gain chosen for the next frame. After
// Init these are the starting settings, clamped to the configured bounds.
func (c *Controller) Settings() (time.Duration, float64) { return c.exposure, c.gain }

// Quickstart returns the number of quickstart frames remaining.
func (c *Controller) Quickstart() int { return c.quickstart }

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	s := State{
		Mode:        c.mode,
		Level:       c.level,
		LevelMin:    c.levelMin,
		LevelMax:    c.levelMax,
		FastForward: c.fastForward,
		Quickstart:  c.quickstart,
		LastChange:  c.lastChange,
		Limit:       c.limit,
		Forecast:    c.forecast,
	}
	if c.hist != nil {
		s.Count = c.hist.Count()
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
