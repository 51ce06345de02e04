/*
DESCRIPTION
  image.go adapts standard library images to the sampler's Frame interface.

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

package brightness

import (
	"image"
	"image/color"
)

type imageFrame struct {
	w, h     int
	channels int
	depth    int
	sample   func(x, y, c int) uint16
}

func (f *imageFrame) Size() (int, int)          { return f.w, f.h }
func (f *imageFrame) Channels() int             { return f.channels }
func (f *imageFrame) Depth() int                { return f.depth }
func (f *imageFrame) Sample(x, y, c int) uint16 { return f.sample(x, y, c) }

// FromImage returns a Frame for img. Gray and Gray16 images have one channel,
// RGBA and NRGBA images of either depth have three. YCbCr images, such as
// decoded JPEGs, and any other image are read as 8-bit RGB. A Frame for a
// YCbCr image is not safe for concurrent use. FromImage returns nil for a nil
// img.
func FromImage(img image.Image) Frame {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	ox, oy := b.Min.X, b.Min.Y
	f := &imageFrame{w: b.Dx(), h: b.Dy(), channels: 3, depth: 8}

	switch m := img.(type) {
	case *image.Gray:
		f.channels = 1
		f.sample = func(x, y, _ int) uint16 { return uint16(m.GrayAt(ox+x, oy+y).Y) }
	case *image.Gray16:
		f.channels, f.depth = 1, 16
		f.sample = func(x, y, _ int) uint16 { return m.Gray16At(ox+x, oy+y).Y }
	case *image.RGBA:
		f.sample = func(x, y, c int) uint16 {
			p := m.RGBAAt(ox+x, oy+y)
			return pick(c, uint16(p.R), uint16(p.G), uint16(p.B))
		}
	case *image.NRGBA:
		f.sample = func(x, y, c int) uint16 {
			p := m.NRGBAAt(ox+x, oy+y)
			return pick(c, uint16(p.R), uint16(p.G), uint16(p.B))
		}
	case *image.RGBA64:
		f.depth = 16
		f.sample = func(x, y, c int) uint16 {
			p := m.RGBA64At(ox+x, oy+y)
			return pick(c, p.R, p.G, p.B)
		}
	case *image.NRGBA64:
		f.depth = 16
		f.sample = func(x, y, c int) uint16 {
			p := m.NRGBA64At(ox+x, oy+y)
			return pick(c, p.R, p.G, p.B)
		}
	case *image.YCbCr:
		// Channels of a pixel are sampled in turn, so the last conversion
		// is kept.
		last := image.Pt(-1, -1)
		var r, g, b uint8
		f.sample = func(x, y, c int) uint16 {
			if p := image.Pt(x, y); p != last {
				yc := m.YCbCrAt(ox+x, oy+y)
				r, g, b = color.YCbCrToRGB(yc.Y, yc.Cb, yc.Cr)
				last = p
			}
			return pick(c, uint16(r), uint16(g), uint16(b))
		}
	default:
		f.sample = func(x, y, c int) uint16 {
			p := color.RGBAModel.Convert(img.At(ox+x, oy+y)).(color.RGBA)
			return pick(c, uint16(p.R), uint16(p.G), uint16(p.B))
		}
	}
	return f
}

func pick(c int, r, g, b uint16) uint16 {
	switch c {
	case 0:
		return r
	case 1:
		return g
	default:
		return b
	}
}
