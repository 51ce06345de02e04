/*
DESCRIPTION
  level.go maps between exposure time/gain pairs and the logarithmic, quantized
  exposure levels used by the exposure/gain controller.

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
	"math"
	"time"
)

// Level returns the exposure level for an exposure time and gain. A level is
// a base-2 stop count of gain·exposure (in seconds) scaled by steps², truncated
// toward zero.
func Level(exposure time.Duration, gain float64, steps int) int {
	s := float64(steps)
	return int(math.Log2(gain*exposure.Seconds()) * s * s)
}

// EffectiveExposure is the inverse of Level. It returns the exposure×gain
// product in seconds for a level; dividing it by a gain gives the exposure
// time to use with that gain.
func EffectiveExposure(level, steps int) float64 {
	s := float64(steps)
	return math.Pow(2, float64(level)/(s*s))
}

// durationOf converts seconds to a time.Duration.
func durationOf(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
