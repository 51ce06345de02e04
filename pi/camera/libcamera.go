/*
DESCRIPTION
  libcamera.go provides still capture with fixed exposure time and gain
  using the libcamera-still command.

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

// Package camera provides still image capture for the sky camera.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os/exec"
	"strconv"
	"time"

	"github.com/ausocean/utils/logging"
)

// Default capture settings.
const (
	DefaultPath   = "libcamera-still"
	defaultWidth  = 1456
	defaultHeight = 1088
)

// ErrNoImage is returned when the capture command produces no output.
var ErrNoImage = errors.New("no image captured")

// Libcamera captures stills by running libcamera-still once per frame. The
// camera's own exposure and gain algorithms are bypassed by passing explicit
// shutter and gain values.
type Libcamera struct {
	log logging.Logger

	// Path is the capture command.
	Path string

	// Width and Height are the capture resolution.
	Width, Height int
}

// New returns a Libcamera capturing at the default resolution.
func New(l logging.Logger) *Libcamera {
	return &Libcamera{log: l, Path: DefaultPath, Width: defaultWidth, Height: defaultHeight}
}

// args returns the capture command arguments for exposure and gain.
func (c *Libcamera) args(exposure time.Duration, gain float64) []string {
	return []string{
		"--shutter", strconv.FormatInt(exposure.Microseconds(), 10),
		"--gain", strconv.FormatFloat(gain, 'f', 2, 64),
		"--awbgains", "1,1",
		"--width", strconv.Itoa(c.Width),
		"--height", strconv.Itoa(c.Height),
		"--immediate",
		"--nopreview",
		"-e", "jpg",
		"-o", "-",
	}
}

// Capture captures a still with the given exposure time and gain. It
// returns early with the context error if ctx is cancelled.
func (c *Libcamera) Capture(ctx context.Context, exposure time.Duration, gain float64) (image.Image, error) {
	args := c.args(exposure, gain)
	c.log.Debug("capturing still", "cmd", c.Path, "exposure", exposure.String(), "gain", gain)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("could not run %s: %w: %s", c.Path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	n := stdout.Len()
	if n == 0 {
		return nil, ErrNoImage
	}

	img, format, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("could not decode still: %w", err)
	}
	c.log.Debug("captured still", "format", format, "bytes", n, "duration (sec)", time.Since(start).Seconds())
	return img, nil
}
