// Implements the "oksvg" rendering backend,
// by wrapping oksvg for parsing and rasterx for scanning.
// Raster <image> elements, which oksvg skips, are decoded here
// and composited below the vector content.
package svgraster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/benoitkugler/svgplay/svgdoc"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
)

// Name is the name under which the backend is registered.
const Name = "oksvg"

// ErrInlineRaster is returned by Parse when a data: URI is larger than
// the configured limit.
var ErrInlineRaster = errors.New("inline raster too large")

// ErrPanic wraps a panic recovered from the parser or the rasterizer.
var ErrPanic = errors.New("renderer panic")

const pngDataPrefix = "data:image/png;base64,"

func init() {
	svgdoc.Register(Name, func(opts svgdoc.Options) svgdoc.Backend { return New(opts) })
}

var _ svgdoc.Backend = (*Backend)(nil) // assert interface conformance

// Backend parses documents with oksvg.
type Backend struct {
	opts   svgdoc.Options
	mode   oksvg.ErrorMode
	logger *slog.Logger
}

// New returns a backend configured by opts.
// A zero MaxInlineRaster means no limit.
func New(opts svgdoc.Options) *Backend {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultWidth <= 0 || opts.DefaultHeight <= 0 {
		opts.DefaultWidth, opts.DefaultHeight = 800, 600
	}
	return &Backend{opts: opts, mode: errorMode(opts.ParseMode), logger: opts.Logger}
}

func errorMode(mode string) oksvg.ErrorMode {
	switch mode {
	case "warn":
		return oksvg.WarnErrorMode
	case "strict":
		return oksvg.StrictErrorMode
	default:
		return oksvg.IgnoreErrorMode
	}
}

func (b *Backend) Name() string { return Name }

// Parse reads the whole document, probes its root and images,
// then builds the oksvg icon.
func (b *Backend) Parse(r io.Reader, baseDir string) (doc svgdoc.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("svgraster: parse: %w: %v", ErrPanic, p)
		}
	}()

	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("svgraster: %w", err)
	}
	info, err := svgdoc.Probe(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	if b.opts.MaxInlineRaster > 0 {
		for _, img := range info.Images {
			if strings.HasPrefix(img.Href, "data:") && len(img.Href) > b.opts.MaxInlineRaster {
				return nil, fmt.Errorf("svgraster: %w (%d bytes)", ErrInlineRaster, len(img.Href))
			}
		}
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(src), b.mode)
	if err != nil {
		return nil, fmt.Errorf("svgraster: %w", err)
	}

	out := &document{
		icon:      icon,
		info:      info,
		userSpace: info.UserSpace(b.opts.DefaultWidth, b.opts.DefaultHeight),
	}
	for _, img := range info.Images {
		decoded, err := b.loadImage(img.Href, baseDir)
		if err != nil {
			if b.mode == oksvg.StrictErrorMode {
				return nil, fmt.Errorf("svgraster: image %s: %w", shortHref(img.Href), err)
			}
			b.logger.Warn("svgraster: skipping image", "href", shortHref(img.Href), "err", err)
			continue
		}
		out.images = append(out.images, placedImage{Image: img, src: decoded})
	}
	return out, nil
}

// loadImage decodes a PNG referenced by a data URI, a file URI or a path.
func (b *Backend) loadImage(href, baseDir string) (image.Image, error) {
	if strings.HasPrefix(href, pngDataPrefix) {
		data, err := base64.StdEncoding.DecodeString(stripSpaces(href[len(pngDataPrefix):]))
		if err != nil {
			return nil, err
		}
		return png.Decode(bytes.NewReader(data))
	}
	if strings.HasPrefix(href, "data:") {
		return nil, errors.New("unsupported data URI, only base64 PNG is handled")
	}
	path := href
	if strings.HasPrefix(href, "file:") {
		u, err := url.Parse(href)
		if err != nil {
			return nil, err
		}
		path = u.Path
	} else if strings.Contains(href, "://") {
		return nil, errors.New("remote references are not supported")
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// shortHref avoids logging whole data URIs.
func shortHref(href string) string {
	if len(href) > 64 {
		return href[:64] + "..."
	}
	return href
}

type placedImage struct {
	svgdoc.Image
	src image.Image
}

var _ svgdoc.Document = (*document)(nil) // assert interface conformance

type document struct {
	icon      *oksvg.SvgIcon
	info      svgdoc.Info
	userSpace svgdoc.Viewport
	images    []placedImage
}

func (d *document) IntrinsicSize() (w, h float64, ok bool) {
	return d.info.IntrinsicSize()
}

// RenderInto draws the images, then the vector paths, mapping
// the document user space onto vp (relative to dst bounds).
func (d *document) RenderInto(dst draw.Image, vp svgdoc.Viewport) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("svgraster: render: %w: %v", ErrPanic, p)
		}
	}()

	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	view := svgdoc.FitMatrix(d.userSpace, vp, d.info.PreserveAspectRatio)

	toDst := svgdoc.Identity.Translate(float64(bounds.Min.X), float64(bounds.Min.Y)).Mult(view)
	for _, img := range d.images {
		drawImage(dst, toDst, img)
	}

	scanner := rasterx.NewScannerGV(w, h, dst, bounds)
	dasher := rasterx.NewDasher(w, h, scanner)
	d.icon.Transform = rasterx.Matrix2D(view)
	d.icon.Draw(dasher, 1.0)
	return nil
}

// drawImage composites img, whose placement is given in user space.
func drawImage(dst draw.Image, toDst svgdoc.Matrix, img placedImage) {
	sb := img.src.Bounds()
	iw, ih := float64(sb.Dx()), float64(sb.Dy())
	if iw == 0 || ih == 0 {
		return
	}
	w, h := img.W, img.H
	if w <= 0 {
		w = iw
	}
	if h <= 0 {
		h = ih
	}
	place := svgdoc.FitMatrix(
		svgdoc.Viewport{X: float64(sb.Min.X), Y: float64(sb.Min.Y), W: iw, H: ih},
		svgdoc.Viewport{X: img.X, Y: img.Y, W: w, H: h},
		img.PreserveAspectRatio,
	)
	s2d := toDst.Mult(img.Transform).Mult(place)
	xdraw.BiLinear.Transform(dst, s2d.Aff3(), img.src, sb, xdraw.Over, nil)
}
