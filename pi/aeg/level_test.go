/*
DESCRIPTION
  level_test.go provides testing of the exposure level conversions.

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
	"testing"
	"time"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		exposure time.Duration
		gain     float64
		steps    int
		want     int
	}{
		{exposure: time.Second, gain: 1, steps: 6, want: 0},
		{exposure: 2 * time.Second, gain: 1, steps: 6, want: 36},
		{exposure: time.Second, gain: 4, steps: 6, want: 72},
		{exposure: 500 * time.Millisecond, gain: 2, steps: 6, want: 0},
		{exposure: 500 * time.Millisecond, gain: 1, steps: 3, want: -9},
		{exposure: 10 * time.Millisecond, gain: 1, steps: 6, want: -239},
		{exposure: time.Millisecond, gain: 1, steps: 6, want: -358},
	}

	for i, test := range tests {
		got := Level(test.exposure, test.gain, test.steps)
		if got != test.want {
			t.Errorf("did not get expected result from test: %d. Got: %d, Want: %d", i, got, test.want)
		}
	}
}

func TestEffectiveExposure(t *testing.T) {
	tests := []struct {
		level, steps int
		want         float64
	}{
		{level: 0, steps: 6, want: 1},
		{level: 36, steps: 6, want: 2},
		{level: -72, steps: 6, want: 0.25},
		{level: 9, steps: 3, want: 2},
	}

	for i, test := range tests {
		got := EffectiveExposure(test.level, test.steps)
		if !approx(got, test.want, 1e-12) {
			t.Errorf("did not get expected result from test: %d. Got: %v, Want: %v", i, got, test.want)
		}
	}
}

// TestLevelRoundTrip checks that converting a level to an effective exposure
// at unit gain and back gives the same level, give or take truncation.
func TestLevelRoundTrip(t *testing.T) {
	for _, steps := range []int{1, 3, 6, 10} {
		lo := Level(10*time.Microsecond, 1, steps)
		hi := Level(100*time.Second, 1, steps)
		for level := lo; level <= hi; level++ {
			exposure := durationOf(EffectiveExposure(level, steps))
			got := Level(exposure, 1, steps)
			if got < level-1 || got > level+1 {
				t.Errorf("round trip of level %d with %d steps gave %d", level, steps, got)
			}
		}
	}
}
