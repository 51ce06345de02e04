/*
DESCRIPTION
  plot.go provides plotting of simulation traces.

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
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotTrace writes plots of the frame means and exposure levels of tr to
// dir.
func plotTrace(dir string, tr *trace, target float64) error {
	x := make([]float64, len(tr.means))
	targets := make([]float64, len(tr.means))
	for i := range x {
		x[i] = float64(i)
		targets[i] = target
	}

	err := plotToFile(dir, "Frame mean", "frame", "mean", func(p *plot.Plot) error {
		return plotutil.AddLines(p, "mean", plotterXY(x, tr.means), "target", plotterXY(x, targets))
	})
	if err != nil {
		return err
	}
	return plotToFile(dir, "Exposure level", "frame", "level", func(p *plot.Plot) error {
		return plotutil.AddLinePoints(p, "level", plotterXY(x, tr.levels))
	})
}

// plotToFile creates a plot with a specified name and x&y titles using the
// provided draw function, and then saves it to a PNG file named after the
// plot in dir.
func plotToFile(dir, name, xTitle, yTitle string, draw func(*plot.Plot) error) error {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = xTitle
	p.Y.Label.Text = yTitle
	err := draw(p)
	if err != nil {
		return fmt.Errorf("could not draw plot contents: %w", err)
	}
	err = p.Save(15*vg.Centimeter, 15*vg.Centimeter, filepath.Join(dir, name+".png"))
	if err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

// plotterXY provides a plotter.XYs type value based on the given x and y data.
func plotterXY(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}
