/*
DESCRIPTION
  controller_test.go provides testing of the exposure/gain controller.

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
	"math"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

const (
	startExposure = 10 * time.Millisecond
	startGain     = 1.0
)

// testConfig returns a session config with both exposure and gain under
// automatic control. The level bounds for it are [-359, 73].
func testConfig() Config {
	return Config{
		TargetMean:    0.4,
		MeanThreshold: 0.05,
		ShutterSteps:  6,
		HistorySize:   5,
		P0:            5,
		P1:            20,
		P2:            45,
		AutoExposure:  true,
		AutoGain:      true,
		MinExposure:   time.Millisecond,
		MaxExposure:   time.Second,
		MinGain:       1,
		MaxGain:       4,
	}
}

func newTestController(t *testing.T, cfg Config, exposure time.Duration, gain float64) *Controller {
	c := New((*logging.TestLogger)(t))
	err := c.Init(cfg, exposure, gain)
	if err != nil {
		t.Fatalf("could not initialise controller: %v", err)
	}
	return c
}

func checkBounds(t *testing.T, cfg Config, i int, exposure time.Duration, gain float64) {
	t.Helper()
	if exposure < cfg.MinExposure || exposure > cfg.MaxExposure {
		t.Errorf("exposure out of bounds on call %d: %v", i, exposure)
	}
	if gain < cfg.MinGain || gain > cfg.MaxGain {
		t.Errorf("gain out of bounds on call %d: %v", i, gain)
	}
}

func TestInit(t *testing.T) {
	tests := []struct {
		autoExposure, autoGain bool
		mode                   AutoMode
		levelMin, levelMax     int
		level                  int
	}{
		{autoExposure: true, autoGain: true, mode: AutoBoth, levelMin: -359, levelMax: 73, level: -240},
		{autoExposure: false, autoGain: true, mode: AutoGainOnly, levelMin: -1, levelMax: 73, level: -1},
		{autoExposure: true, autoGain: false, mode: AutoExposureOnly, levelMin: -287, levelMax: 73, level: -240},
		{autoExposure: false, autoGain: false, mode: AutoOff, levelMin: 71, levelMax: 73, level: 71},
	}

	for i, test := range tests {
		cfg := testConfig()
		cfg.AutoExposure, cfg.AutoGain = test.autoExposure, test.autoGain
		c := newTestController(t, cfg, startExposure, startGain)
		s := c.State()
		if s.Mode != test.mode || s.LevelMin != test.levelMin || s.LevelMax != test.levelMax || s.Level != test.level {
			t.Errorf("did not get expected result from test: %d. Got: %+v", i, s)
		}
		if s.FastForward || s.Count != 0 {
			t.Errorf("unexpected initial state for test %d: %+v", i, s)
		}
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "history too large", modify: func(c *Config) { c.HistorySize = HistoryCapacity + 1 }},
		{name: "zero history", modify: func(c *Config) { c.HistorySize = 0 }},
		{name: "min exposure above max", modify: func(c *Config) { c.MinExposure = 2 * time.Second }},
		{name: "zero min gain", modify: func(c *Config) { c.MinGain = 0 }},
		{name: "min gain above max", modify: func(c *Config) { c.MinGain = 8 }},
		{name: "target above one", modify: func(c *Config) { c.TargetMean = 1.5 }},
		{name: "negative threshold", modify: func(c *Config) { c.MeanThreshold = -0.1 }},
		{name: "zero steps", modify: func(c *Config) { c.ShutterSteps = 0 }},
		{name: "negative coefficient", modify: func(c *Config) { c.P2 = -1 }},
	}

	for _, test := range tests {
		cfg := testConfig()
		test.modify(&cfg)
		c := New((*logging.TestLogger)(t))
		err := c.Init(cfg, startExposure, startGain)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected config error, got: %v", test.name, err)
		}

		// A failed Init leaves the controller passing settings through.
		e, g := c.Next(0.1, startExposure, startGain)
		if e != startExposure || g != startGain {
			t.Errorf("%s: uninitialised controller changed settings to %v, %v", test.name, e, g)
		}
	}
}

// TestDarkScenario drives a constant dark mean into the controller. The level
// climbs by the fast forward step until it saturates at the maximum and holds.
func TestDarkScenario(t *testing.T) {
	cfg := testConfig()
	c := newTestController(t, cfg, startExposure, startGain)

	wantLevels := []int{-170, -95, -20, 55, 73, 73, 73, 73, 73, 73}
	exposure, gain := startExposure, startGain
	var transitions int
	ff := c.State().FastForward
	for i, want := range wantLevels {
		exposure, gain = c.Next(0.1, exposure, gain)
		checkBounds(t, cfg, i, exposure, gain)

		s := c.State()
		if s.Level != want {
			t.Errorf("unexpected level on call %d: got %d, want %d", i, s.Level, want)
		}
		if s.FastForward != ff {
			transitions++
			if !s.FastForward {
				t.Errorf("fast forward cleared on call %d", i)
			}
			ff = s.FastForward
		}
	}
	if transitions != 1 {
		t.Errorf("expected exactly one fast forward transition, got %d", transitions)
	}
	if exposure != cfg.MaxExposure || gain != cfg.MaxGain {
		t.Errorf("expected max settings, got %v, %v", exposure, gain)
	}
	if c.State().Limit != LimitCeiling {
		t.Errorf("expected ceiling limit, got %v", c.State().Limit)
	}
}

// TestSaturation checks that fully dark and fully bright frames move the level
// monotonically to the matching bound, where it stays with fast forward set.
func TestSaturation(t *testing.T) {
	tests := []struct {
		name  string
		mean  float64
		limit Limit
	}{
		{name: "dark", mean: 0, limit: LimitCeiling},
		{name: "bright", mean: 1, limit: LimitFloor},
	}

	for _, test := range tests {
		cfg := testConfig()
		c := newTestController(t, cfg, startExposure, startGain)
		s := c.State()
		bound := s.LevelMax
		if test.mean > cfg.TargetMean {
			bound = s.LevelMin
		}

		exposure, gain := startExposure, startGain
		prev := s.Level
		for i := 0; i < 20; i++ {
			exposure, gain = c.Next(test.mean, exposure, gain)
			checkBounds(t, cfg, i, exposure, gain)
			s = c.State()
			if s.Level < s.LevelMin || s.Level > s.LevelMax {
				t.Fatalf("%s: level %d outside [%d, %d]", test.name, s.Level, s.LevelMin, s.LevelMax)
			}
			if test.mean < cfg.TargetMean && s.Level < prev || test.mean > cfg.TargetMean && s.Level > prev {
				t.Errorf("%s: level moved the wrong way on call %d: %d to %d", test.name, i, prev, s.Level)
			}
			if s.Level == bound && !s.FastForward {
				t.Errorf("%s: fast forward not set at bound on call %d", test.name, i)
			}
			prev = s.Level
		}
		if s.Level != bound {
			t.Errorf("%s: level did not reach bound: got %d, want %d", test.name, s.Level, bound)
		}
		if s.Limit != test.limit {
			t.Errorf("%s: unexpected limit: got %v, want %v", test.name, s.Limit, test.limit)
		}
	}
}

// TestStable checks that means within the threshold of the target leave the
// level alone and clear fast forward.
func TestStable(t *testing.T) {
	cfg := testConfig()
	c := newTestController(t, cfg, startExposure, startGain)

	// Saturate first so that fast forward is latched.
	exposure, gain := startExposure, startGain
	for i := 0; i < 8; i++ {
		exposure, gain = c.Next(0, exposure, gain)
	}
	if !c.State().FastForward {
		t.Fatal("expected fast forward after saturation")
	}

	level := c.State().Level
	means := []float64{0.41, 0.38, 0.4, 0.43, 0.39}
	for i, m := range means {
		e, g := c.Next(m, exposure, gain)
		if e != exposure || g != gain {
			t.Errorf("settings changed on in band call %d: %v, %v", i, e, g)
		}
		exposure, gain = e, g
		if c.State().Level != level {
			t.Errorf("level changed on in band call %d: got %d, want %d", i, c.State().Level, level)
		}
	}
	if c.State().FastForward {
		t.Error("fast forward still set after in band frames")
	}
}

func TestAutoOff(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure, cfg.AutoGain = false, false
	const gain = 2.0
	c := newTestController(t, cfg, startExposure, gain)

	for i, m := range []float64{0.1, 0.9, 0, 1, 0.4, 0.2, 0.7} {
		e, g := c.Next(m, startExposure, gain)
		if g != gain {
			t.Errorf("gain changed on call %d: got %v, want %v", i, g, gain)
		}
		if e != startExposure {
			t.Errorf("exposure changed on call %d: got %v, want %v", i, e, startExposure)
		}
	}
}

func TestGainOnly(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure = false
	c := newTestController(t, cfg, time.Second, startGain)

	exposure, gain := time.Second, startGain
	for i := 0; i < 6; i++ {
		var g float64
		exposure, g = c.Next(0.1, exposure, gain)
		if exposure != time.Second {
			t.Errorf("exposure changed on call %d: %v", i, exposure)
		}
		if g < gain {
			t.Errorf("gain decreased on call %d: %v to %v", i, gain, g)
		}
		gain = g
	}
	if gain != cfg.MaxGain {
		t.Errorf("gain did not reach max: %v", gain)
	}
	if c.State().Limit != LimitCeiling {
		t.Errorf("expected ceiling limit, got %v", c.State().Limit)
	}
}

func TestExposureOnly(t *testing.T) {
	cfg := testConfig()
	cfg.AutoGain = false
	const gain = 2.0
	c := newTestController(t, cfg, startExposure, gain)

	exposure := startExposure
	for i := 0; i < 10; i++ {
		e, g := c.Next(0.1, exposure, gain)
		if g != gain {
			t.Errorf("gain changed on call %d: %v", i, g)
		}
		if e < exposure || e > cfg.MaxExposure {
			t.Errorf("unexpected exposure on call %d: %v (was %v)", i, e, exposure)
		}
		exposure = e
	}
	if exposure != cfg.MaxExposure {
		t.Errorf("exposure did not reach max: %v", exposure)
	}
}

func TestQuickstart(t *testing.T) {
	cfg := testConfig()
	cfg.Quickstart = 10
	c := newTestController(t, cfg, startExposure, startGain)

	exposure, gain := startExposure, startGain
	for i := 0; i < 3; i++ {
		exposure, gain = c.Next(0.1, exposure, gain)
		if got, want := c.Quickstart(), cfg.Quickstart-i-1; got != want {
			t.Errorf("unexpected quickstart on call %d: got %d, want %d", i, got, want)
		}
	}

	// A good frame turns quickstart off for good.
	exposure, gain = c.Next(0.4, exposure, gain)
	if c.Quickstart() != 0 {
		t.Errorf("quickstart not cleared by good frame: %d", c.Quickstart())
	}
	c.Next(0.1, exposure, gain)
	if c.Quickstart() != 0 {
		t.Errorf("quickstart re-armed: %d", c.Quickstart())
	}
}

// TestForecastUsesMinGain documents that the forecast is clamped above by the
// minimum gain rather than by the maximum possible mean.
func TestForecastUsesMinGain(t *testing.T) {
	for _, minGain := range []float64{0.5, 1} {
		cfg := testConfig()
		cfg.MinGain = minGain
		c := newTestController(t, cfg, startExposure, startGain)
		c.Next(1, startExposure, startGain)
		if got := c.State().Forecast.MeanForecast; got != minGain {
			t.Errorf("unexpected forecast with min gain %v: got %v", minGain, got)
		}
	}
}

func TestExposureChange(t *testing.T) {
	tests := []struct {
		delta       float64
		fastForward bool
		p2          float64 // Overrides the P2 coefficient when non-zero.
		want        int
	}{
		{delta: 0, want: 3},                        // Near target: half the shutter steps.
		{delta: 0.05, want: 3},                     // On the threshold.
		{delta: 0.08, want: 6},                     // Slow: 5 + 20*0.08.
		{delta: 0.08, fastForward: true, want: 19}, // Fast: 5 + 1.6 + 3.6².
		{delta: 0.175, want: 70},
		{delta: 0.5, want: maxChange},
		{delta: 0.5, p2: 1e12, want: maxChange},            // Beyond the int range.
		{delta: 0.5, p2: math.MaxFloat64, want: maxChange}, // Squares to +Inf.
	}

	for i, test := range tests {
		cfg := testConfig()
		if test.p2 != 0 {
			cfg.P2 = test.p2
		}
		c := newTestController(t, cfg, startExposure, startGain)
		c.fastForward = test.fastForward
		got := c.exposureChange(test.delta)
		if got != test.want {
			t.Errorf("did not get expected result from test: %d. Got: %d, Want: %d", i, got, test.want)
		}
	}
}

// TestLargeCoefficientDirection checks that an oversized correction still
// moves the level in the direction of the target.
func TestLargeCoefficientDirection(t *testing.T) {
	cfg := testConfig()
	cfg.P2 = 1e12
	c := newTestController(t, cfg, startExposure, startGain)

	prev := c.State().Level
	exposure, gain := startExposure, startGain
	for i := 0; i < 4; i++ {
		exposure, gain = c.Next(1, exposure, gain)
		st := c.State()
		if st.Level > prev {
			t.Fatalf("frame %d: level rose on a bright frame: %d -> %d", i, prev, st.Level)
		}
		if st.Level < st.LevelMin {
			t.Fatalf("frame %d: level %d below minimum %d", i, st.Level, st.LevelMin)
		}
		prev = st.Level
	}
	if want := c.State().LevelMin; prev != want {
		t.Errorf("level did not reach minimum: got %d, want %d", prev, want)
	}
	if exposure != cfg.MinExposure {
		t.Errorf("exposure not at minimum: got %v, want %v", exposure, cfg.MinExposure)
	}
}

func TestAutoModeString(t *testing.T) {
	tests := []struct {
		autoExposure, autoGain bool
		want                   string
	}{
		{false, false, "Off"},
		{false, true, "GainOnly"},
		{true, false, "ExposureOnly"},
		{true, true, "Both"},
	}
	for _, test := range tests {
		if got := NewAutoMode(test.autoExposure, test.autoGain).String(); got != test.want {
			t.Errorf("unexpected mode for %v/%v: got %s, want %s", test.autoExposure, test.autoGain, got, test.want)
		}
	}
}
