// Package frame defines the unit of a sequence: one parsed document
// with its cached raster.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/benoitkugler/svgplay/marker"
	"github.com/benoitkugler/svgplay/svgdoc"
)

// ErrNoSource is returned by Reload when the origin holds neither a path nor data.
var ErrNoSource = errors.New("frame has no source to reload from")

// Origin tells where the document of a frame comes from.
type Origin struct {
	// Path is the input file, or the rewritten document
	// produced by an embedded payload extraction.
	Path string
	// Data holds the input when it was not read from a file.
	Data []byte
	// Segment is the marker index inside the input, or -1 for a whole input.
	Segment int
}

// Body returns the document bytes designated by o.
func (o Origin) Body() ([]byte, error) {
	data := o.Data
	if data == nil {
		if o.Path == "" {
			return nil, ErrNoSource
		}
		var err error
		data, err = os.ReadFile(o.Path)
		if err != nil {
			return nil, err
		}
	}
	if o.Segment < 0 {
		return data, nil
	}
	seg, err := marker.Find(data, o.Segment)
	if err != nil {
		return nil, err
	}
	return seg.Body, nil
}

func (o Origin) baseDir() string {
	if o.Path == "" {
		return ""
	}
	return filepath.Dir(o.Path)
}

// CacheMeta records the parameters a bitmap was produced for.
type CacheMeta struct {
	Zoom         float64
	Scale        float64 // document to bitmap pixels
	WindowWidth  int
	WindowHeight int
}

// Frame is a loaded document. A frame exclusively owns its document and bitmap.
// The cache is only modified by StoreBitmap and DropBitmap, which maintain
//
//	bitmap != nil => rendered => meta describes bitmap
type Frame struct {
	ID     string
	Label  string
	Origin Origin

	// Intrinsic size, in pixels
	Width, Height float64

	doc      svgdoc.Document
	bitmap   *image.RGBA
	rendered bool
	meta     CacheMeta
}

// New returns a frame owning doc, with an empty cache.
func New(id, label string, origin Origin, doc svgdoc.Document, width, height float64) *Frame {
	return &Frame{ID: id, Label: label, Origin: origin, doc: doc, Width: width, Height: height}
}

// Document returns the parsed document, or nil after Unload.
func (f *Frame) Document() svgdoc.Document { return f.doc }

// Bitmap returns the cached raster and the parameters it was made for.
func (f *Frame) Bitmap() (*image.RGBA, CacheMeta, bool) {
	if f.bitmap == nil {
		return nil, CacheMeta{}, false
	}
	return f.bitmap, f.meta, true
}

// Rendered reports whether the cached bitmap is up to date.
func (f *Frame) Rendered() bool { return f.rendered }

// StoreBitmap replaces the cache.
func (f *Frame) StoreBitmap(img *image.RGBA, meta CacheMeta) {
	if img == nil {
		f.DropBitmap()
		return
	}
	f.bitmap, f.meta, f.rendered = img, meta, true
}

// DropBitmap empties the cache.
func (f *Frame) DropBitmap() {
	f.bitmap, f.meta, f.rendered = nil, CacheMeta{}, false
}

// Unload releases the document and the bitmap.
// The document is read again from Origin by Reload.
func (f *Frame) Unload() {
	f.DropBitmap()
	f.doc = nil
}

// Reload parses the document again from its origin.
func (f *Frame) Reload(b svgdoc.Backend) error {
	body, err := f.Origin.Body()
	if err != nil {
		return fmt.Errorf("frame %s: %w", f.ID, err)
	}
	doc, err := b.Parse(bytes.NewReader(body), f.Origin.baseDir())
	if err != nil {
		return fmt.Errorf("frame %s: %w", f.ID, err)
	}
	f.DropBitmap()
	f.doc = doc
	if w, h, ok := doc.IntrinsicSize(); ok {
		f.Width, f.Height = w, h
	}
	return nil
}
