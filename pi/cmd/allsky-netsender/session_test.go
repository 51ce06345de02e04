/*
DESCRIPTION
  session_test.go provides testing of the capture session against a
  simulated camera.

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
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
	"github.com/ausocean/skycam/pi/netsender"
	"github.com/ausocean/skycam/pi/sds"
	"github.com/ausocean/utils/logging"
)

type capture struct {
	exposure time.Duration
	gain     float64
}

// sceneCamera is a camera looking at a uniform scene. The frame brightness
// is radiance × exposure seconds × gain, saturating at white. The first
// fail captures return empty frames.
type sceneCamera struct {
	mu       sync.Mutex
	radiance float64
	fail     int
	captures []capture
}

func (c *sceneCamera) Capture(ctx context.Context, exposure time.Duration, gain float64) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures = append(c.captures, capture{exposure, gain})
	if len(c.captures) <= c.fail {
		return image.NewGray(image.Rect(0, 0, 0, 0)), nil
	}

	v := math.Min(c.radiance*exposure.Seconds()*gain, 1)
	img := image.NewGray(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = uint8(math.Round(v * 255))
	}
	return img, nil
}

func (c *sceneCamera) history() []capture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capture(nil), c.captures...)
}

func testSettings() settings {
	return settings{
		AEG: aeg.Config{
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
			Quickstart:    3,
		},
		Exposure:           10 * time.Millisecond,
		Gain:               1,
		CaptureInterval:    time.Millisecond,
		QuickstartInterval: time.Millisecond,
	}
}

// startSession runs a session in the background, stopping it when the test
// ends.
func startSession(t *testing.T, cam camera, st settings) *session {
	t.Helper()
	s := newSession((*logging.TestLogger)(t), cam)
	s.update(st)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()
	t.Cleanup(func() {
		cancel()
		err := <-done
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error from session: %v", err)
		}
	})
	return s
}

// waitFor polls cond until it is true or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSessionConverges(t *testing.T) {
	cfg := testSettings().AEG
	cam := &sceneCamera{radiance: 20}
	s := startSession(t, cam, testSettings())

	waitFor(t, "frames", func() bool {
		st, ok := s.latest()
		return ok && st.Frames >= 12
	})

	st, _ := s.latest()
	if math.Abs(st.Mean-cfg.TargetMean) > cfg.MeanThreshold {
		t.Errorf("mean did not converge: %v", st.Mean)
	}
	for i, c := range cam.history() {
		if c.exposure < cfg.MinExposure || c.exposure > cfg.MaxExposure || c.gain < cfg.MinGain || c.gain > cfg.MaxGain {
			t.Errorf("capture %d out of bounds: %+v", i, c)
		}
	}
}

func TestSessionSkipsBadFrames(t *testing.T) {
	cam := &sceneCamera{radiance: 20, fail: 3}
	s := startSession(t, cam, testSettings())

	waitFor(t, "first frame", func() bool {
		_, ok := s.latest()
		return ok
	})

	h := cam.history()
	for i := 0; i <= cam.fail; i++ {
		want := capture{10 * time.Millisecond, 1}
		if h[i] != want {
			t.Errorf("capture %d changed settings after bad frame: got %+v, want %+v", i, h[i], want)
		}
	}
}

func TestSessionUpdate(t *testing.T) {
	cam := &sceneCamera{radiance: 20}
	st := testSettings()
	st.AEG.AutoExposure, st.AEG.AutoGain = false, false
	st.Exposure, st.Gain = 5*time.Millisecond, 2
	s := startSession(t, cam, st)

	waitFor(t, "captures", func() bool { return len(cam.history()) >= 3 })
	for i, c := range cam.history() {
		if c != (capture{5 * time.Millisecond, 2}) {
			t.Errorf("capture %d did not use fixed settings: %+v", i, c)
		}
	}

	st.Exposure, st.Gain = 20*time.Millisecond, 3
	s.update(st)
	waitFor(t, "new settings", func() bool {
		h := cam.history()
		return h[len(h)-1] == capture{20 * time.Millisecond, 3}
	})

	// Invalid settings are rejected and the session carries on.
	bad := st
	bad.AEG.HistorySize = aeg.HistoryCapacity + 1
	s.update(bad)
	n := len(cam.history())
	waitFor(t, "more captures", func() bool { return len(cam.history()) >= n+3 })
	h := cam.history()
	if h[len(h)-1] != (capture{20 * time.Millisecond, 3}) {
		t.Errorf("invalid settings changed capture: %+v", h[len(h)-1])
	}
}

func TestReadPin(t *testing.T) {
	s := newSession((*logging.TestLogger)(t), &sceneCamera{})
	read := readPin(s, nil)

	pin := netsender.Pin{Name: pinMean}
	read(&pin)
	if pin.Value != -1 {
		t.Errorf("pin set before first frame: %d", pin.Value)
	}

	s.status = status{Mean: 0.4123, Exposure: 12500 * time.Microsecond, Gain: 2.5, Level: -200, Frames: 1}
	s.ok = true
	tests := []struct {
		name string
		want int
	}{
		{pinMean, 412},
		{pinExposure, 12500},
		{pinGain, 250},
		{pinLevel, -200},
		{"T0", -1},
		{sds.PinTemperature, -1},
	}
	for _, test := range tests {
		pin := netsender.Pin{Name: test.name}
		err := read(&pin)
		if err != nil {
			t.Errorf("unexpected error reading %s: %v", test.name, err)
		}
		if pin.Value != test.want {
			t.Errorf("unexpected value for %s: got %d, want %d", test.name, pin.Value, test.want)
		}
	}
}
