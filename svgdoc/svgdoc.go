// Provides the interface between the viewer and a vector rendering library.
// A Backend parses SVG bytes into a Document, which knows its intrinsic
// size and how to rasterize itself into a target image.
// See svgplay/svgraster for the concrete backend.
package svgdoc

import (
	"errors"
	"fmt"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Viewport is the rectangle of the target image, in pixels,
// onto which the document view box is mapped.
type Viewport struct{ X, Y, W, H float64 }

// Document is a parsed vector document, owned by exactly one frame.
// Implementations are not safe for concurrent use.
type Document interface {
	// IntrinsicSize returns the document size in pixels,
	// or ok = false when the document does not declare one.
	IntrinsicSize() (w, h float64, ok bool)

	// RenderInto draws the document into dst, scaled to fit vp.
	RenderInto(dst draw.Image, vp Viewport) error
}

// Backend knows how to parse a document.
type Backend interface {
	Name() string

	// Parse reads a whole document. Relative references
	// (such as <image> hrefs) are resolved against baseDir.
	Parse(r io.Reader, baseDir string) (Document, error)
}

// ParseFile opens path and parses it with b,
// resolving references relative to the file directory.
func ParseFile(b Backend, path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return b.Parse(f, filepath.Dir(path))
}

// Options configures a backend.
type Options struct {
	// ParseMode is one of "ignore", "warn" or "strict" and decides
	// what happens with elements the backend can't draw.
	ParseMode string
	// MaxInlineRaster is the largest data: URI, in bytes, accepted inline.
	// Larger payloads make Parse fail, so that they go through extraction.
	MaxInlineRaster int
	// DefaultWidth and DefaultHeight give the user space of documents
	// declaring neither a size nor a view box.
	DefaultWidth, DefaultHeight float64
	Logger                      *slog.Logger
}

// Factory builds a configured backend.
type Factory func(Options) Backend

// ErrUnknownBackend is returned by Lookup.
var ErrUnknownBackend = errors.New("unknown rendering backend")

var (
	backendsMu sync.Mutex
	backends   = map[string]Factory{}
)

// Register makes a backend available by name.
// It is meant to be called from the init function of the backend package.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Lookup builds the backend registered under name.
func Lookup(name string, opts Options) (Backend, error) {
	backendsMu.Lock()
	f, ok := backends[name]
	backendsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	return f(opts), nil
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
