/*
DESCRIPTION
  vars.go provides parsing of the cloud variables that configure a capture
  session.

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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
)

// Variable names.
const (
	varAutoExposure       = "AutoExposure"
	varAutoGain           = "AutoGain"
	varTargetMean         = "TargetMean"
	varMeanThreshold      = "MeanThreshold"
	varShutterSteps       = "ShutterSteps"
	varHistorySize        = "HistorySize"
	varP0                 = "P0"
	varP1                 = "P1"
	varP2                 = "P2"
	varMinExposure        = "MinExposure"
	varMaxExposure        = "MaxExposure"
	varMinGain            = "MinGain"
	varMaxGain            = "MaxGain"
	varExposure           = "Exposure"
	varGain               = "Gain"
	varQuickstart         = "Quickstart"
	varCaptureInterval    = "CaptureInterval"
	varQuickstartInterval = "QuickstartInterval"
	varRotatedLogs        = "RotatedLogs"
)

// varTypes are the variable types advertised to the service. Exposure times
// are in microseconds and intervals in seconds.
var varTypes = map[string]string{
	varAutoExposure:       "bool",
	varAutoGain:           "bool",
	varTargetMean:         "float",
	varMeanThreshold:      "float",
	varShutterSteps:       "uint",
	varHistorySize:        "uint",
	varP0:                 "float",
	varP1:                 "float",
	varP2:                 "float",
	varMinExposure:        "uint",
	varMaxExposure:        "uint",
	varMinGain:            "float",
	varMaxGain:            "float",
	varExposure:           "uint",
	varGain:               "float",
	varQuickstart:         "uint",
	varCaptureInterval:    "float",
	varQuickstartInterval: "float",
	varRotatedLogs:        "bool",
}

// settings configures a capture session.
type settings struct {
	AEG                aeg.Config
	Exposure           time.Duration // Starting exposure time.
	Gain               float64       // Starting gain.
	CaptureInterval    time.Duration
	QuickstartInterval time.Duration
	RotatedLogs        bool // Send rotated log files as well as live logs.
}

func defaultSettings() settings {
	return settings{
		AEG: aeg.Config{
			TargetMean:    0.5,
			MeanThreshold: 0.1,
			ShutterSteps:  6,
			HistorySize:   3,
			P0:            5,
			P1:            20,
			P2:            45,
			AutoExposure:  true,
			AutoGain:      true,
			MinExposure:   32 * time.Microsecond,
			MaxExposure:   60 * time.Second,
			MinGain:       1,
			MaxGain:       16,
			Quickstart:    10,
		},
		Exposure:           10 * time.Millisecond,
		Gain:               1,
		CaptureInterval:    30 * time.Second,
		QuickstartInterval: time.Second,
	}
}

// parseVars returns session settings from the service variables. Unset
// variables take their defaults, as do variables that fail to parse, in
// which case the returned error describes every bad variable. The result
// is always usable even when an error is returned, unless the combined
// controller config is invalid, which is reported with aeg.ErrConfig.
func parseVars(vars map[string]string) (settings, error) {
	s := defaultSettings()
	var errs []error

	boolVar := func(name string, dst *bool) {
		v, ok := vars[name]
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
			return
		}
		*dst = b
	}
	floatVar := func(name string, dst *float64) {
		v, ok := vars[name]
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
			return
		}
		*dst = f
	}
	uintVar := func(name string, dst *int) {
		v, ok := vars[name]
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseUint(v, 10, 31)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
			return
		}
		*dst = int(n)
	}
	microsVar := func(name string, dst *time.Duration) {
		n := int(dst.Microseconds())
		uintVar(name, &n)
		*dst = time.Duration(n) * time.Microsecond
	}
	secondsVar := func(name string, dst *time.Duration) {
		f := dst.Seconds()
		floatVar(name, &f)
		if f <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s: %v must be positive", name, f))
			return
		}
		*dst = time.Duration(f * float64(time.Second))
	}

	c := &s.AEG
	boolVar(varAutoExposure, &c.AutoExposure)
	boolVar(varAutoGain, &c.AutoGain)
	floatVar(varTargetMean, &c.TargetMean)
	floatVar(varMeanThreshold, &c.MeanThreshold)
	uintVar(varShutterSteps, &c.ShutterSteps)
	uintVar(varHistorySize, &c.HistorySize)
	floatVar(varP0, &c.P0)
	floatVar(varP1, &c.P1)
	floatVar(varP2, &c.P2)
	microsVar(varMinExposure, &c.MinExposure)
	microsVar(varMaxExposure, &c.MaxExposure)
	floatVar(varMinGain, &c.MinGain)
	floatVar(varMaxGain, &c.MaxGain)
	uintVar(varQuickstart, &c.Quickstart)
	microsVar(varExposure, &s.Exposure)
	floatVar(varGain, &s.Gain)
	secondsVar(varCaptureInterval, &s.CaptureInterval)
	secondsVar(varQuickstartInterval, &s.QuickstartInterval)
	boolVar(varRotatedLogs, &s.RotatedLogs)

	if err := s.AEG.Validate(); err != nil {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}
