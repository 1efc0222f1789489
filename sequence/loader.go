package sequence

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/embedded"
	"github.com/benoitkugler/svgplay/frame"
	"github.com/benoitkugler/svgplay/marker"
	"github.com/benoitkugler/svgplay/svgdoc"
	"github.com/benoitkugler/svgplay/tempfile"
)

// ErrNoFrames is returned when no input produced a frame.
var ErrNoFrames = errors.New("no frame could be loaded")

const singleLabel = "Single file"

// Loader turns inputs into sequences. Per item failures (an unreadable
// file, a malformed segment, a document that does not parse even after
// extraction) are logged and skipped.
type Loader struct {
	cfg     config.Config
	backend svgdoc.Backend
	temps   *tempfile.Registry
	logger  *slog.Logger
}

// NewLoader returns a loader parsing with backend and creating extraction
// files through temps. A nil logger means slog.Default().
func NewLoader(cfg config.Config, backend svgdoc.Backend, temps *tempfile.Registry, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, backend: backend, temps: temps, logger: logger}
}

// accumulates frames across inputs
type builder struct {
	frames []*frame.Frame
	full   bool
}

// LoadFiles loads every path in order. It fails only when no frame
// at all could be loaded.
func (l *Loader) LoadFiles(paths []string) (*Sequence, error) {
	var b builder
	for _, path := range paths {
		if b.full {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("loader: failed to read file", "path", path, "err", err)
			continue
		}
		l.loadInput(&b, data, path)
	}
	return l.finish(b)
}

// LoadStream loads a single in-memory input, such as standard input.
func (l *Loader) LoadStream(data []byte) (*Sequence, error) {
	var b builder
	l.loadInput(&b, data, "")
	return l.finish(b)
}

func (l *Loader) finish(b builder) (*Sequence, error) {
	if len(b.frames) == 0 {
		l.logger.Error("loader: no frame loaded")
		return nil, ErrNoFrames
	}
	l.logger.Info("loader: sequence loaded", "frames", len(b.frames))
	return New(b.frames, l.cfg), nil
}

// loadInput splits one input; path is empty for streams.
func (l *Loader) loadInput(b *builder, data []byte, path string) {
	origin := frame.Origin{Path: path, Segment: -1}
	if path == "" {
		origin.Data = data
	}

	if !marker.Contains(data) {
		id := path
		if path == "" {
			id = "stream[0]"
		}
		l.addFrame(b, data, id, singleLabel, origin)
		return
	}

	lexer := marker.NewLexer(data)
	if pre := bytes.TrimSpace(lexer.Preamble()); len(pre) != 0 {
		l.logger.Debug("loader: discarding text before the first split marker", "input", inputName(path), "bytes", len(pre))
	}
	for seg, ok := lexer.Next(); ok && !b.full; seg, ok = lexer.Next() {
		id := fmt.Sprintf("stream[%d]", seg.Index)
		if path != "" {
			id = fmt.Sprintf("%s.frame[%d]", path, seg.Index)
		}
		if seg.Err != nil {
			l.logger.Warn("loader: skipping segment", "frame", id, "err", seg.Err)
			continue
		}
		if seg.Empty() {
			continue
		}
		label := seg.Label
		if !seg.HasLabel {
			label = fmt.Sprintf("Frame %d", len(b.frames))
		}
		segOrigin := origin
		segOrigin.Segment = seg.Index
		l.addFrame(b, seg.Body, id, label, segOrigin)
	}
}

func inputName(path string) string {
	if path == "" {
		return "stream"
	}
	return path
}

// addFrame parses body, falling back to payload extraction,
// and appends the frame on success.
func (l *Loader) addFrame(b *builder, body []byte, id, label string, origin frame.Origin) {
	if len(b.frames) >= l.cfg.MaxFrames {
		l.logger.Warn("loader: frame limit reached, ignoring remaining input", "max", l.cfg.MaxFrames)
		b.full = true
		return
	}

	baseDir := ""
	if origin.Path != "" {
		baseDir = filepath.Dir(origin.Path)
	}
	doc, err := l.backend.Parse(bytes.NewReader(body), baseDir)
	if err != nil {
		l.logger.Debug("loader: parse failed, extracting embedded rasters", "frame", id, "err", err)
		extracted, xerr := embedded.Extract(body, l.temps)
		if xerr != nil {
			l.logger.Warn("loader: skipping frame", "frame", id, "err", err, "extraction", xerr)
			return
		}
		doc, err = svgdoc.ParseFile(l.backend, extracted)
		if err != nil {
			l.logger.Warn("loader: skipping frame after extraction", "frame", id, "err", err)
			return
		}
		origin = frame.Origin{Path: extracted, Segment: -1}
	}

	w, h, ok := doc.IntrinsicSize()
	if !ok || w <= 0 || h <= 0 {
		w, h = l.cfg.DefaultWidth, l.cfg.DefaultHeight
	}
	b.frames = append(b.frames, frame.New(id, label, origin, doc, w, h))
}
