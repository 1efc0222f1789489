package svgdoc

import (
	"math"
	"strings"
)

// UserSpace returns the view box used to map the document onto a viewport:
// the declared view box, or else the intrinsic size, or else the given default.
func (info Info) UserSpace(defaultW, defaultH float64) Viewport {
	if info.HasViewBox && info.ViewBox.W > 0 && info.ViewBox.H > 0 {
		return info.ViewBox
	}
	if w, h, ok := info.IntrinsicSize(); ok {
		return Viewport{W: w, H: h}
	}
	return Viewport{W: defaultW, H: defaultH}
}

// FitMatrix maps the box vb onto vp, honoring a preserveAspectRatio
// value such as "xMidYMid meet" (the default) or "none".
func FitMatrix(vb, vp Viewport, preserveAspectRatio string) Matrix {
	if vb.W <= 0 || vb.H <= 0 {
		return Matrix{}
	}
	sx, sy := vp.W/vb.W, vp.H/vb.H
	fields := strings.Fields(preserveAspectRatio)
	align, slice := "xMidYMid", false
	if len(fields) > 0 {
		align = fields[0]
	}
	if len(fields) > 1 {
		slice = fields[1] == "slice"
	}
	if align == "none" {
		return Identity.Translate(vp.X, vp.Y).Scale(sx, sy).Translate(-vb.X, -vb.Y)
	}

	s := math.Min(sx, sy)
	if slice {
		s = math.Max(sx, sy)
	}
	dx, dy := vp.W-vb.W*s, vp.H-vb.H*s
	var tx, ty float64
	switch {
	case strings.HasPrefix(align, "xMid"):
		tx = dx / 2
	case strings.HasPrefix(align, "xMax"):
		tx = dx
	}
	switch {
	case strings.HasSuffix(align, "YMid"):
		ty = dy / 2
	case strings.HasSuffix(align, "YMax"):
		ty = dy
	}
	return Identity.Translate(vp.X+tx, vp.Y+ty).Scale(s, s).Translate(-vb.X, -vb.Y)
}
