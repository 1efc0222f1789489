package svgraster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benoitkugler/svgplay/svgdoc"
)

func toPngBytes(m image.Image) ([]byte, error) {
	var b bytes.Buffer
	err := png.Encode(&b, m)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func renderDoc(t *testing.T, doc svgdoc.Document, w, h int) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := doc.RenderInto(img, svgdoc.Viewport{W: float64(w), H: float64(h)}); err != nil {
		t.Fatalf("can't raster document: %s", err)
	}
	return img
}

// isColor checks the dominant channel, tolerating anti-aliasing
func isColor(c color.RGBA, r, g, b bool) bool {
	on := func(v uint8, want bool) bool {
		if want {
			return v > 0xc0
		}
		return v < 0x40
	}
	return c.A > 0xc0 && on(c.R, r) && on(c.G, g) && on(c.B, b)
}

func TestFixtures(t *testing.T) {
	b := New(svgdoc.Options{})
	for _, p := range [...]struct {
		name string
		w, h float64
	}{
		{"rect", 100, 50},
		{"viewbox", 96 / 2.54 * 10, 96 / 2.54 * 5},
		{"plot", 192, 144},
	} {
		doc, err := svgdoc.ParseFile(b, filepath.Join("testdata", p.name+".svg"))
		if err != nil {
			t.Fatalf("can't parse %s: %s", p.name, err)
		}
		w, h, ok := doc.IntrinsicSize()
		if !ok || math.Abs(w-p.w) > 1e-6 || math.Abs(h-p.h) > 1e-6 {
			t.Errorf("%s: expected size %vx%v, got %vx%v (%v)", p.name, p.w, p.h, w, h, ok)
		}
		renderDoc(t, doc, int(math.Ceil(w)), int(math.Ceil(h)))
	}
}

func TestRenderScaled(t *testing.T) {
	b := New(svgdoc.Options{})
	doc, err := svgdoc.ParseFile(b, "testdata/rect.svg")
	if err != nil {
		t.Fatal(err)
	}
	// user space 100x50 mapped onto 200x100
	img := renderDoc(t, doc, 200, 100)
	if c := img.RGBAAt(90, 50); !isColor(c, true, false, false) {
		t.Errorf("expected red inside the scaled rect, got %v", c)
	}
	if c := img.RGBAAt(150, 50); c.A != 0 {
		t.Errorf("expected transparent outside the rect, got %v", c)
	}

	doc, err = svgdoc.ParseFile(b, "testdata/viewbox.svg")
	if err != nil {
		t.Fatal(err)
	}
	img = renderDoc(t, doc, 200, 100)
	if c := img.RGBAAt(150, 50); !isColor(c, false, false, true) {
		t.Errorf("expected blue in the right half, got %v", c)
	}
	if c := img.RGBAAt(50, 50); c.A != 0 {
		t.Errorf("expected transparent left half, got %v", c)
	}
}

func imageDoc(href string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="40" height="40">
	<image x="0" y="0" width="20" height="20" preserveAspectRatio="none" xlink:href="%s"/>
	<rect x="10" y="10" width="5" height="5" fill="red"/>
</svg>`, href)
}

func TestImages(t *testing.T) {
	green, err := toPngBytes(uniform(4, 4, color.RGBA{0, 0xff, 0, 0xff}))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err = os.WriteFile(filepath.Join(dir, "green.png"), green, 0o600); err != nil {
		t.Fatal(err)
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(green)

	b := New(svgdoc.Options{MaxInlineRaster: 1 << 20})
	for _, href := range []string{
		"green.png",
		filepath.Join(dir, "green.png"),
		"file://" + filepath.ToSlash(filepath.Join(dir, "green.png")),
		dataURI,
	} {
		doc, err := b.Parse(strings.NewReader(imageDoc(href)), dir)
		if err != nil {
			t.Fatalf("%s: %s", shortHref(href), err)
		}
		img := renderDoc(t, doc, 40, 40)
		if c := img.RGBAAt(5, 5); !isColor(c, false, true, false) {
			t.Errorf("%s: expected green image, got %v", shortHref(href), c)
		}
		// vectors are drawn above images
		if c := img.RGBAAt(12, 12); !isColor(c, true, false, false) {
			t.Errorf("%s: expected red rect over the image, got %v", shortHref(href), c)
		}
		if c := img.RGBAAt(30, 30); c.A != 0 {
			t.Errorf("%s: expected transparent background, got %v", shortHref(href), c)
		}
	}
}

func TestInlineRasterLimit(t *testing.T) {
	green, err := toPngBytes(uniform(16, 16, color.RGBA{0, 0xff, 0, 0xff}))
	if err != nil {
		t.Fatal(err)
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(green)

	b := New(svgdoc.Options{MaxInlineRaster: 10})
	_, err = b.Parse(strings.NewReader(imageDoc(dataURI)), "")
	if !errors.Is(err, ErrInlineRaster) {
		t.Fatalf("expected ErrInlineRaster, got %v", err)
	}
	// references to files are not limited
	if _, err = b.Parse(strings.NewReader(imageDoc("missing.png")), t.TempDir()); err != nil {
		t.Fatalf("missing images are skipped in ignore mode, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	b := New(svgdoc.Options{})
	if _, err := b.Parse(strings.NewReader("<html/>"), ""); !errors.Is(err, svgdoc.ErrNoRoot) {
		t.Errorf("expected ErrNoRoot, got %v", err)
	}
	if _, err := b.Parse(strings.NewReader(""), ""); !errors.Is(err, svgdoc.ErrNoRoot) {
		t.Errorf("expected ErrNoRoot, got %v", err)
	}

	const unknown = `<svg width="10" height="10"><blink/></svg>`
	if _, err := b.Parse(strings.NewReader(unknown), ""); err != nil {
		t.Errorf("ignore mode: unexpected error %s", err)
	}
	strict := New(svgdoc.Options{ParseMode: "strict"})
	if _, err := strict.Parse(strings.NewReader(unknown), ""); err == nil {
		t.Error("strict mode: expected error on unknown element")
	}
	if _, err := strict.Parse(strings.NewReader(imageDoc("missing.png")), t.TempDir()); err == nil {
		t.Error("strict mode: expected error on missing image")
	}
}

func TestRegistered(t *testing.T) {
	b, err := svgdoc.Lookup(Name, svgdoc.Options{ParseMode: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != Name {
		t.Errorf("unexpected backend %s", b.Name())
	}
	if errorMode("warn") != b.(*Backend).mode {
		t.Error("parse mode not applied")
	}
}
