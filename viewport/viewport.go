// Package viewport computes where a document lands in the window:
// fit to the content area, centered, then zoomed and panned.
package viewport

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Input describes the document and the window.
// The content area is the window minus the top and bottom bars.
type Input struct {
	DocWidth, DocHeight       float64
	WindowWidth, WindowHeight float64
	TopBar, BottomBar         float64
	Zoom                      float64
	PanX, PanY                float64
}

// Transform places the document: a point (x, y) of the document
// is drawn at (OriginX + x*Scale, OriginY + y*Scale).
type Transform struct {
	Scale            float64
	BaseScale        float64 // fit scale, before zoom
	OriginX, OriginY float64
}

// Empty reports a degenerate transform, for which nothing is drawn.
func (t Transform) Empty() bool { return t.Scale <= 0 }

// Size returns the document size on screen.
func (t Transform) Size(docWidth, docHeight float64) (w, h float64) {
	return docWidth * t.Scale, docHeight * t.Scale
}

// Aff3 returns the matrix drawing a bitmap rendered at Scale/k
// (that is, k is the extra scale to apply) at the origin.
func (t Transform) Aff3(k float64) f64.Aff3 {
	return f64.Aff3{
		k, 0, t.OriginX,
		0, k, t.OriginY,
	}
}

// ClampZoom bounds zoom to [min, max].
func ClampZoom(zoom, min, max float64) float64 {
	return math.Max(min, math.Min(max, zoom))
}

// Compute fits the document in the content area, scales it by
// the zoom and moves it by the pan offset.
func Compute(in Input) Transform {
	contentH := in.WindowHeight - in.TopBar - in.BottomBar
	if in.DocWidth <= 0 || in.DocHeight <= 0 || in.WindowWidth <= 0 || contentH <= 0 || in.Zoom <= 0 {
		return Transform{}
	}
	base := math.Min(in.WindowWidth/in.DocWidth, contentH/in.DocHeight)
	scale := base * in.Zoom
	offsetX := (in.WindowWidth - in.DocWidth*scale) / 2
	offsetY := (contentH - in.DocHeight*scale) / 2
	return Transform{
		Scale:     scale,
		BaseScale: base,
		OriginX:   offsetX + in.PanX,
		OriginY:   offsetY + in.PanY + in.TopBar,
	}
}
