package viewer

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type alignment uint8

const (
	alignLeft alignment = iota
	alignRight
)

const barPadding = 10

// drawBar fills r and writes text vertically centered in it.
// Text overflowing the bar is clipped.
func drawBar(dst draw.Image, r image.Rectangle, text string, align alignment, fill, ink color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(fill), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := font.Drawer{Dst: dst, Src: image.NewUniform(ink), Face: face}
	width := d.MeasureString(text).Ceil()
	x := r.Min.X + barPadding
	if align == alignRight {
		x = r.Max.X - barPadding - width
		if x < r.Min.X+barPadding {
			x = r.Min.X + barPadding
		}
	}
	y := r.Min.Y + (r.Dy()-face.Height)/2 + face.Ascent
	if sub, ok := dst.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		if clipped, ok := sub.SubImage(r).(draw.Image); ok {
			d.Dst = clipped
		}
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
