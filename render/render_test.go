package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"testing"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/frame"
	"github.com/benoitkugler/svgplay/svgdoc"
)

var red = color.RGBA{0xff, 0, 0, 0xff}

// fakeDoc fills its viewport in red and counts the rasterizations.
type fakeDoc struct {
	renders int
	lastVP  svgdoc.Viewport
}

func (d *fakeDoc) IntrinsicSize() (float64, float64, bool) { return 100, 50, true }

func (d *fakeDoc) RenderInto(dst draw.Image, vp svgdoc.Viewport) error {
	d.renders++
	d.lastVP = vp
	r := image.Rect(int(vp.X), int(vp.Y), int(vp.X+vp.W), int(vp.Y+vp.H))
	draw.Draw(dst, r, image.NewUniform(red), image.Point{}, draw.Src)
	return nil
}

type fakeBackend struct {
	doc  *fakeDoc
	fail bool
}

func (fakeBackend) Name() string { return "fake" }

func (b fakeBackend) Parse(r io.Reader, baseDir string) (svgdoc.Document, error) {
	if b.fail {
		return nil, errors.New("parse failure")
	}
	return b.doc, nil
}

func setup() (*Pipeline, *frame.Frame, *fakeDoc) {
	doc := &fakeDoc{}
	cfg := config.Default()
	f := frame.New("test", "Single file", frame.Origin{Data: []byte("<svg/>"), Segment: -1}, doc, 100, 50)
	return New(cfg, fakeBackend{doc: doc}, nil), f, doc
}

var baseParams = Params{WindowWidth: 800, WindowHeight: 600, Zoom: 1, TopBar: 50, BottomBar: 50}

func TestRenderDraws(t *testing.T) {
	p, f, doc := setup()
	target := image.NewRGBA(image.Rect(0, 0, 800, 600))
	p.Render(f, target, baseParams)

	if doc.renders != 1 || !f.Rendered() {
		t.Fatalf("expected one rasterization, got %d", doc.renders)
	}
	// document 100x50 in 800x500: scale 8, centered
	if doc.lastVP != (svgdoc.Viewport{W: 800, H: 400}) {
		t.Errorf("unexpected viewport %v", doc.lastVP)
	}
	stats := p.Stats()
	if !stats.LastBlit.Regenerated || stats.LastBlit.Scale != 1 || stats.LastBlit.OriginY != 100 {
		t.Errorf("unexpected blit %+v", stats.LastBlit)
	}
	if c := target.RGBAAt(400, 300); c != red {
		t.Errorf("expected document pixel, got %v", c)
	}
	// content background outside the document
	if c := target.RGBAAt(400, 75); c != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("expected background, got %v", c)
	}
	// bars are left to the host
	if c := target.RGBAAt(400, 10); c.A != 0 {
		t.Errorf("bar area modified: %v", c)
	}
	_, meta, _ := f.Bitmap()
	if meta != (frame.CacheMeta{Zoom: 1, Scale: 8, WindowWidth: 800, WindowHeight: 600}) {
		t.Errorf("unexpected cache meta %+v", meta)
	}
}

func TestCacheTolerance(t *testing.T) {
	p, f, doc := setup()
	target := image.NewRGBA(image.Rect(0, 0, 1000, 1000))

	steps := []struct {
		name       string
		change     func(*Params)
		rasterized int
	}{
		{"first", func(*Params) {}, 1},
		{"identical", func(*Params) {}, 1},
		{"small zoom change", func(p *Params) { p.Zoom = 1.05 }, 1},
		{"zoom within 50%", func(p *Params) { p.Zoom = 1.45 }, 1},
		{"pan", func(p *Params) { p.PanX, p.PanY = 30, -40 }, 1},
		{"width within 50px", func(p *Params) { p.WindowWidth = 840 }, 1},
		{"zoom beyond 50%", func(p *Params) { p.Zoom = 1.6 }, 2},
		{"width beyond 50px", func(p *Params) { p.WindowWidth = 891 }, 3},
		{"height beyond 50px", func(p *Params) { p.WindowHeight = 651 }, 4},
		{"within the new cache", func(p *Params) { p.WindowWidth = 851 }, 4},
	}
	params := baseParams
	previous := 0
	for _, step := range steps {
		step.change(&params)
		p.Render(f, target, params)
		if doc.renders != step.rasterized || p.Stats().Rasterizations != step.rasterized {
			t.Errorf("%s: expected %d rasterizations, got %d", step.name, step.rasterized, doc.renders)
		}
		if regenerated := step.rasterized > previous; p.Stats().LastBlit.Regenerated != regenerated {
			t.Errorf("%s: expected Regenerated=%v", step.name, regenerated)
		}
		previous = step.rasterized
	}
}

func TestCorrectiveScale(t *testing.T) {
	p, f, _ := setup()
	target := image.NewRGBA(image.Rect(0, 0, 800, 600))
	p.Render(f, target, baseParams)

	params := baseParams
	params.Zoom = 1.25
	p.Render(f, target, params)
	blit := p.Stats().LastBlit
	if blit.Regenerated || blit.Scale != 1.25 {
		t.Errorf("expected a rescaled cached bitmap, got %+v", blit)
	}
	// document is now 1000x500 on screen, centered: origin (-100, 50)
	if blit.OriginX != -100 || blit.OriginY != 50 {
		t.Errorf("unexpected origin %+v", blit)
	}
	// clipped to the content area
	if c := target.RGBAAt(400, 20); c.A != 0 {
		t.Errorf("drawing leaked into the top bar: %v", c)
	}
	if c := target.RGBAAt(400, 300); c != red {
		t.Errorf("expected document pixel, got %v", c)
	}
}

func TestCorrectiveScaleAfterResize(t *testing.T) {
	p, f, _ := setup()
	target := image.NewRGBA(image.Rect(0, 0, 800, 600))
	p.Render(f, target, baseParams)

	// narrower window, within the tolerance: the base scale drops
	// from 8 to 7.6, so the blit scale is 7.6*1.2/8, not the zoom ratio
	params := baseParams
	params.WindowWidth = 760
	params.Zoom = 1.2
	p.Render(f, target, params)
	blit := p.Stats().LastBlit
	if blit.Regenerated {
		t.Fatal("expected the cached bitmap to be reused")
	}
	if math.Abs(blit.Scale-1.14) > 1e-9 {
		t.Errorf("expected a blit scale of 1.14, got %v", blit.Scale)
	}
}

func TestAllocationFailure(t *testing.T) {
	p, f, doc := setup()
	p.cfg.MaxBitmapPixels = 1000
	target := image.NewRGBA(image.Rect(0, 0, 800, 600))

	for i := 0; i < 2; i++ {
		p.Render(f, target, baseParams)
		if f.Rendered() || doc.renders != 0 {
			t.Fatal("no bitmap expected")
		}
		if !p.Stats().LastBlit.Diagnostic {
			t.Fatal("expected a diagnostic")
		}
	}
	// the diagnostic box border uses the text color
	found := false
	for x := 0; x < 800 && !found; x++ {
		found = target.RGBAAt(x, 300) == color.RGBA{0x33, 0x33, 0x33, 0xff}
	}
	if !found {
		t.Error("diagnostic box not drawn")
	}

	// retried on the next call
	p.cfg.MaxBitmapPixels = 64 << 20
	p.Render(f, target, baseParams)
	if !f.Rendered() || doc.renders != 1 {
		t.Error("expected a successful retry")
	}
}

func TestReloadOnRender(t *testing.T) {
	p, f, doc := setup()
	target := image.NewRGBA(image.Rect(0, 0, 800, 600))
	f.Unload()
	p.Render(f, target, baseParams)
	if f.Document() == nil || doc.renders != 1 {
		t.Error("expected the frame to be reloaded and drawn")
	}

	failing := New(config.Default(), fakeBackend{fail: true}, nil)
	f.Unload()
	failing.Render(f, target, baseParams)
	if f.Document() != nil || f.Rendered() {
		t.Error("failed reload must leave the frame unloaded")
	}
}

func TestDegenerateWindow(t *testing.T) {
	p, f, doc := setup()
	target := image.NewRGBA(image.Rect(0, 0, 800, 100))
	p.Render(f, target, Params{WindowWidth: 800, WindowHeight: 100, Zoom: 1, TopBar: 50, BottomBar: 50})
	if doc.renders != 0 {
		t.Error("nothing must be rasterized without content area")
	}
}

// plainImage has no SubImage method.
type plainImage struct{ img *image.RGBA }

func (p plainImage) Bounds() image.Rectangle     { return p.img.Bounds() }
func (p plainImage) At(x, y int) color.Color     { return p.img.At(x, y) }
func (p plainImage) Set(x, y int, c color.Color) { p.img.Set(x, y, c) }
func (p plainImage) ColorModel() color.Model     { return p.img.ColorModel() }

func TestClipWithoutSubImage(t *testing.T) {
	p, f, _ := setup()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	params := baseParams
	params.Zoom = 2
	p.Render(f, plainImage{img}, params)
	if c := img.RGBAAt(400, 20); c.A != 0 {
		t.Errorf("drawing leaked into the top bar: %v", c)
	}
	if c := img.RGBAAt(400, 300); c != red {
		t.Errorf("expected document pixel, got %v", c)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("a bb ccc dddddddddd e", 4)
	expected := []string{"a bb", "ccc", "dddd", "dddd", "dd e"}
	if len(lines) != len(expected) {
		t.Fatalf("unexpected lines %q", lines)
	}
	for i := range lines {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}
