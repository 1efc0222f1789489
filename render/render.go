// Package render draws the current frame into a host supplied image,
// keeping one cached raster per frame.
//
// A bitmap is rasterized at the scale of the view when it is produced,
// and reused (rescaled by the configured interpolator) as long as the window
// and the zoom stay within the configured tolerances.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/frame"
	"github.com/benoitkugler/svgplay/svgdoc"
	"github.com/benoitkugler/svgplay/viewport"
	xdraw "golang.org/x/image/draw"
)

// ErrBitmapTooLarge is returned when a bitmap would exceed the pixel budget.
var ErrBitmapTooLarge = errors.New("bitmap too large")

var errEmptyBitmap = errors.New("empty bitmap")

// Params are the view parameters of one render call.
type Params struct {
	WindowWidth, WindowHeight int
	PanX, PanY                float64
	Zoom                      float64
	TopBar, BottomBar         int
}

// Blit describes the last drawing operation.
type Blit struct {
	OriginX, OriginY float64
	Scale            float64 // extra scale applied to the cached bitmap
	Regenerated      bool
	Diagnostic       bool
}

// Stats exposes the cache behavior.
type Stats struct {
	Rasterizations int
	LastBlit       Blit
}

// Pipeline renders frames. It is not safe for concurrent use.
type Pipeline struct {
	cfg     config.Config
	backend svgdoc.Backend
	interp  xdraw.Interpolator
	logger  *slog.Logger
	stats   Stats
}

// New returns a pipeline using backend to reload unloaded frames.
// A nil logger means slog.Default().
func New(cfg config.Config, backend svgdoc.Backend, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, backend: backend, interp: Interpolator(cfg.Interpolation), logger: logger}
}

// Interpolator maps a configuration name to an x/image scaler.
func Interpolator(name string) xdraw.Interpolator {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor
	case "bilinear":
		return xdraw.BiLinear
	case "catmull-rom":
		return xdraw.CatmullRom
	default:
		return xdraw.ApproxBiLinear
	}
}

func (p *Pipeline) Stats() Stats { return p.stats }

// ContentRect is the area between the bars.
func ContentRect(params Params) image.Rectangle {
	return image.Rect(0, params.TopBar, params.WindowWidth, params.WindowHeight-params.BottomBar)
}

// Render draws f into the content area of target.
// Failures never propagate: a frame that can't be reloaded is skipped,
// and a bitmap that can't be produced is replaced by a diagnostic box.
func (p *Pipeline) Render(f *frame.Frame, target draw.Image, params Params) {
	if f == nil {
		return
	}
	if f.Document() == nil {
		if err := f.Reload(p.backend); err != nil {
			p.logger.Debug("render: reload failed", "frame", f.ID, "err", err)
			return
		}
	}

	content := ContentRect(params).Intersect(target.Bounds())
	draw.Draw(target, content, image.NewUniform(p.cfg.Background), image.Point{}, draw.Src)

	zoom := viewport.ClampZoom(params.Zoom, p.cfg.MinZoom, p.cfg.MaxZoom)
	tr := viewport.Compute(viewport.Input{
		DocWidth:     f.Width,
		DocHeight:    f.Height,
		WindowWidth:  float64(params.WindowWidth),
		WindowHeight: float64(params.WindowHeight),
		TopBar:       float64(params.TopBar),
		BottomBar:    float64(params.BottomBar),
		Zoom:         zoom,
		PanX:         params.PanX,
		PanY:         params.PanY,
	})
	if tr.Empty() || content.Empty() {
		return
	}

	bitmap, meta, ok := f.Bitmap()
	regenerate := !ok || p.stale(meta, params, zoom)
	if regenerate {
		f.DropBitmap()
		var err error
		bitmap, err = p.rasterize(f, tr.Scale)
		if err != nil {
			p.logger.Warn("render: can't produce bitmap", "frame", f.ID, "err", err)
			DrawDiagnostic(target, content, fmt.Sprintf("Cannot render %s: %s", f.ID, err), p.cfg.BarColor, p.cfg.TextColor)
			p.stats.LastBlit = Blit{Diagnostic: true}
			return
		}
		meta = frame.CacheMeta{Zoom: zoom, Scale: tr.Scale, WindowWidth: params.WindowWidth, WindowHeight: params.WindowHeight}
		f.StoreBitmap(bitmap, meta)
	}

	// ratio of effective scales: equals zoom/cachedZoom at a fixed window,
	// and stays exact after a resize within the tolerance
	k := tr.Scale / meta.Scale
	dst := clip(target, content)
	if math.Abs(k-1) < 1e-9 {
		k = 1
		at := image.Pt(int(math.Round(tr.OriginX)), int(math.Round(tr.OriginY)))
		draw.Draw(dst, bitmap.Bounds().Add(at), bitmap, bitmap.Bounds().Min, draw.Over)
	} else {
		p.interp.Transform(dst, tr.Aff3(k), bitmap, bitmap.Bounds(), xdraw.Over, nil)
	}
	p.stats.LastBlit = Blit{OriginX: tr.OriginX, OriginY: tr.OriginY, Scale: k, Regenerated: regenerate}
}

// stale applies the invalidation policy.
func (p *Pipeline) stale(meta frame.CacheMeta, params Params, zoom float64) bool {
	tol := p.cfg.WindowTolerance
	if abs(params.WindowWidth-meta.WindowWidth) > tol || abs(params.WindowHeight-meta.WindowHeight) > tol {
		return true
	}
	if meta.Zoom <= 0 {
		return true
	}
	return math.Abs(zoom-meta.Zoom)/meta.Zoom > p.cfg.ZoomTolerance
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (p *Pipeline) rasterize(f *frame.Frame, scale float64) (*image.RGBA, error) {
	w, h := math.Ceil(f.Width*scale), math.Ceil(f.Height*scale)
	bitmap, err := p.allocate(w, h)
	if err != nil {
		return nil, err
	}
	vp := svgdoc.Viewport{W: f.Width * scale, H: f.Height * scale}
	if err = f.Document().RenderInto(bitmap, vp); err != nil {
		return nil, err
	}
	p.stats.Rasterizations++
	return bitmap, nil
}

func (p *Pipeline) allocate(w, h float64) (bitmap *image.RGBA, err error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %gx%g", errEmptyBitmap, w, h)
	}
	if w*h > float64(p.cfg.MaxBitmapPixels) {
		return nil, fmt.Errorf("%w: %gx%g", ErrBitmapTooLarge, w, h)
	}
	defer func() {
		if r := recover(); r != nil {
			bitmap, err = nil, fmt.Errorf("bitmap allocation: %v", r)
		}
	}()
	return image.NewRGBA(image.Rect(0, 0, int(w), int(h))), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// clip restricts drawing to r.
func clip(dst draw.Image, r image.Rectangle) draw.Image {
	if s, ok := dst.(subImager); ok {
		if d, ok := s.SubImage(r).(draw.Image); ok {
			return d
		}
	}
	return clipped{Image: dst, r: r.Intersect(dst.Bounds())}
}

type clipped struct {
	draw.Image
	r image.Rectangle
}

func (c clipped) Bounds() image.Rectangle { return c.r }
