/*
DESCRIPTION
  session.go provides the capture session: the loop that captures frames,
  measures their brightness and adjusts exposure and gain between them.

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
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
	"github.com/ausocean/skycam/pi/brightness"
	"github.com/ausocean/skycam/pi/netsender"
	"github.com/ausocean/skycam/pi/sds"
	"github.com/ausocean/utils/logging"
)

// Status pins.
const (
	pinMean     = "X40" // Frame mean ×1000.
	pinExposure = "X41" // Exposure time in microseconds.
	pinGain     = "X42" // Gain ×100.
	pinLevel    = "X43" // Exposure level.
)

// camera captures a still with a given exposure time and gain.
type camera interface {
	Capture(ctx context.Context, exposure time.Duration, gain float64) (image.Image, error)
}

// status is the result of the latest frame.
type status struct {
	Mean     float64
	Exposure time.Duration // Exposure time the frame was captured with.
	Gain     float64       // Gain the frame was captured with.
	Level    int
	Frames   int // Frames measured since start.
	Limit    aeg.Limit
}

// session owns a controller and drives it from a capture loop. Settings are
// passed in with update; the loop applies them before its next capture.
type session struct {
	log     logging.Logger
	cam     camera
	sampler *brightness.Sampler
	ctrl    *aeg.Controller
	pending chan settings

	mu     sync.Mutex
	status status
	ok     bool // True once a frame has been measured.
}

func newSession(l logging.Logger, cam camera) *session {
	return &session{
		log:     l,
		cam:     cam,
		sampler: brightness.NewSampler(),
		ctrl:    aeg.New(l),
		pending: make(chan settings, 1),
	}
}

// update hands new settings to the capture loop, replacing any not yet
// applied.
func (s *session) update(st settings) {
	for {
		select {
		case s.pending <- st:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// run captures frames until ctx is done. It waits for the first settings
// before capturing.
func (s *session) run(ctx context.Context) error {
	var (
		cur      settings
		started  bool
		exposure time.Duration
		gain     float64
	)

	apply := func(st settings) {
		startExposure, startGain := st.Exposure, st.Gain
		// Automatically controlled values carry on from where they are.
		if started && st.AEG.AutoExposure {
			startExposure = exposure
		}
		if started && st.AEG.AutoGain {
			startGain = gain
		}
		err := s.ctrl.Init(st.AEG, startExposure, startGain)
		if err != nil {
			s.log.Error("could not apply settings, keeping previous", "error", err)
			return
		}
		cur, started = st, true
		exposure, gain = s.ctrl.Settings()
		s.log.Info("applied settings", "mode", st.AEG.Mode().String(), "exposure", exposure.String(), "gain", gain)
	}

	for !started {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-s.pending:
			apply(st)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-s.pending:
			apply(st)
		default:
		}

		err := s.frame(ctx, exposure, gain)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			// Settings are left as they were for the next attempt.
			s.log.Warning("frame skipped", "error", err)
		default:
			exposure, gain = s.ctrl.Settings()
		}

		wait := cur.CaptureInterval
		if s.ctrl.Quickstart() > 0 {
			wait = cur.QuickstartInterval
		}
		s.log.Debug("waiting for next capture", "wait", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// frame captures and measures one frame with exposure and gain, and passes
// its mean to the controller.
func (s *session) frame(ctx context.Context, exposure time.Duration, gain float64) error {
	img, err := s.cam.Capture(ctx, exposure, gain)
	if err != nil {
		return err
	}
	mean, err := s.sampler.Mean(brightness.FromImage(img))
	if err != nil {
		return fmt.Errorf("could not measure frame: %w", err)
	}
	s.ctrl.Next(mean, exposure, gain)

	st := s.ctrl.State()
	s.mu.Lock()
	s.status = status{
		Mean:     mean,
		Exposure: exposure,
		Gain:     gain,
		Level:    st.Level,
		Frames:   s.status.Frames + 1,
		Limit:    st.Limit,
	}
	s.ok = true
	s.mu.Unlock()

	s.log.Info("frame measured", "mean", mean, "exposure", exposure.String(), "gain", gain, "level", st.Level, "limit", st.Limit.String())
	return nil
}

// latest returns the status of the last measured frame, and false if there
// is none yet.
func (s *session) latest() (status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.ok
}

// readPin returns a netsender pin reader reporting the session status. System
// pins are read from sys when it is non-nil.
func readPin(s *session, sys *sds.System) netsender.PinReader {
	return func(pin *netsender.Pin) error {
		if sys != nil && sds.Handles(pin.Name) {
			return sys.ReadPin(pin)
		}
		pin.Value = -1
		st, ok := s.latest()
		if !ok {
			return nil
		}
		switch pin.Name {
		case pinMean:
			pin.Value = int(st.Mean*1000 + 0.5)
		case pinExposure:
			pin.Value = int(st.Exposure.Microseconds())
		case pinGain:
			pin.Value = int(st.Gain*100 + 0.5)
		case pinLevel:
			pin.Value = st.Level
		}
		return nil
	}
}
