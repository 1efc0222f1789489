// Package viewer holds the interactive state of a viewing session:
// zoom, pan, window size and the bars drawn around the content area.
// Hosts translate their input events to Session calls and present
// the image produced by Draw.
package viewer

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"time"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/render"
	"github.com/benoitkugler/svgplay/sequence"
	"github.com/benoitkugler/svgplay/viewport"
)

const (
	runningMsg = "Running"
	pausedMsg  = "Paused"
	zoomingMsg = "Zooming... "
)

// Session is not safe for concurrent use: hosts call it
// from a single goroutine.
type Session struct {
	cfg      config.Config
	seq      *sequence.Sequence
	pipeline *render.Pipeline
	logger   *slog.Logger

	zoom       float64
	panX, panY float64
	width      int
	height     int

	// pointer modes, toggled by the user
	zoomMode, dragMode bool
	// a zoom gesture is in progress until ZoomSettle without zoom events
	zooming  bool
	lastZoom time.Time
	clock    func() time.Time
}

// NewSession starts a session on seq, with a window of the given size.
// A nil logger means slog.Default().
func NewSession(cfg config.Config, seq *sequence.Sequence, pipeline *render.Pipeline, width, height int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg: cfg, seq: seq, pipeline: pipeline, logger: logger,
		zoom: 1, zoomMode: true, dragMode: true, clock: time.Now,
	}
	s.Resize(width, height)
	return s
}

func (s *Session) Sequence() *sequence.Sequence { return s.seq }

// Replace swaps the sequence, keeping the view parameters.
// The current index is kept when still valid.
func (s *Session) Replace(seq *sequence.Sequence) {
	old := s.seq
	index := old.Playback().Index()
	playing := old.Playback().Playing()
	fps := old.Playback().FPS()
	old.Close()

	s.seq = seq
	pb := seq.Playback()
	pb.Seek(index)
	pb.SetFPS(fps)
	if !playing {
		pb.Pause()
	}
}

// Size returns the window size.
func (s *Session) Size() (w, h int) { return s.width, s.height }

// Resize sets the window size, bounded below by the configured minimum.
func (s *Session) Resize(w, h int) {
	if w < s.cfg.MinWindowWidth {
		w = s.cfg.MinWindowWidth
	}
	if h < s.cfg.MinWindowHeight {
		h = s.cfg.MinWindowHeight
	}
	s.width, s.height = w, h
}

// Bars returns the heights of the top (tool) bar and the bottom (hint) bar.
func (s *Session) Bars() (top, bottom int) {
	h := int(s.cfg.BarRatio * float64(s.height))
	if h < s.cfg.MinBarHeight {
		h = s.cfg.MinBarHeight
	}
	return h, h
}

func (s *Session) Zoom() float64 { return s.zoom }

func (s *Session) Pan() (x, y float64) { return s.panX, s.panY }

// ZoomIn and ZoomOut step the zoom and start (or extend) a zoom gesture.
func (s *Session) ZoomIn()  { s.zoomBy(s.cfg.ZoomStep) }
func (s *Session) ZoomOut() { s.zoomBy(-s.cfg.ZoomStep) }

func (s *Session) zoomBy(step float64) {
	s.SetZoom(s.zoom + step)
	s.zooming = true
	s.lastZoom = s.clock()
}

// Zooming reports whether a zoom gesture is in progress.
func (s *Session) Zooming() bool { return s.zooming }

// Modes returns whether zoom commands and pan commands are enabled.
func (s *Session) Modes() (zoom, drag bool) { return s.zoomMode, s.dragMode }

// SetZoom clamps z to the configured bounds.
func (s *Session) SetZoom(z float64) {
	z = viewport.ClampZoom(z, s.cfg.MinZoom, s.cfg.MaxZoom)
	// avoid drift from repeated steps
	s.zoom = math.Round(z*1e6) / 1e6
}

// MoveBy pans the view.
func (s *Session) MoveBy(dx, dy float64) {
	s.panX += dx
	s.panY += dy
}

// Home resets zoom and pan.
func (s *Session) Home() {
	s.zoom = 1
	s.panX, s.panY = 0, 0
}

// Next pauses playback and shows the next frame.
func (s *Session) Next() {
	pb := s.seq.Playback()
	pb.Pause()
	pb.Next()
}

// Prev pauses playback and shows the previous frame.
func (s *Session) Prev() {
	pb := s.seq.Playback()
	pb.Pause()
	pb.Previous()
}

// Tick advances the playback and ends a settled zoom gesture.
// It reports whether the display changed.
func (s *Session) Tick(now time.Time) bool {
	changed := s.seq.Playback().Tick(now)
	if s.zooming && now.Sub(s.lastZoom) >= s.cfg.ZoomSettle {
		s.zooming = false
		changed = true
	}
	return changed
}

// Params returns the render parameters of the current view.
func (s *Session) Params() render.Params {
	top, bottom := s.Bars()
	return render.Params{
		WindowWidth:  s.width,
		WindowHeight: s.height,
		PanX:         s.panX,
		PanY:         s.panY,
		Zoom:         s.zoom,
		TopBar:       top,
		BottomBar:    bottom,
	}
}

// Draw renders the current frame and the bars into dst,
// which is expected to cover the window.
func (s *Session) Draw(dst draw.Image) {
	params := s.Params()
	s.pipeline.Render(s.seq.Current(), dst, params)

	st := s.Status()
	top := image.Rect(0, 0, s.width, params.TopBar)
	bottom := image.Rect(0, s.height-params.BottomBar, s.width, s.height)
	drawBar(dst, top, st.Toolbar(), alignRight, s.cfg.BarColor, s.cfg.TextColor)
	drawBar(dst, bottom, st.Hint(), alignLeft, s.cfg.BarColor, s.cfg.TextColor)
}

// Render returns a new image of the window.
func (s *Session) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	s.Draw(img)
	return img
}

// Status is a snapshot of the session, for display.
type Status struct {
	Index    int     `json:"index"`
	Count    int     `json:"count"`
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	FPS      int     `json:"fps"`
	Zoom     float64 `json:"zoom"`
	Zooming  bool    `json:"zooming"`
	ZoomMode bool    `json:"zoomMode"`
	DragMode bool    `json:"dragMode"`
	Playing  bool    `json:"playing"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

func (s *Session) Status() Status {
	pb := s.seq.Playback()
	st := Status{
		Index:    pb.Index(),
		Count:    pb.Count(),
		FPS:      pb.FPS(),
		Zoom:     s.zoom,
		Zooming:  s.zooming,
		ZoomMode: s.zoomMode,
		DragMode: s.dragMode,
		Playing:  pb.Playing(),
		Width:    s.width,
		Height:   s.height,
	}
	if f := s.seq.Current(); f != nil {
		st.ID, st.Label = f.ID, f.Label
	}
	return st
}

// Toolbar is the text of the top bar.
func (st Status) Toolbar() string {
	zooming := ""
	if st.Zooming {
		zooming = zoomingMsg
	}
	if st.Count <= 1 {
		return fmt.Sprintf("%s%.0f%%.", zooming, st.Zoom*100)
	}
	msg := pausedMsg
	if st.Playing {
		msg = runningMsg
	}
	return fmt.Sprintf("%d frame(s)/sec. %s%.0f%%. %s.", st.FPS, zooming, st.Zoom*100, msg)
}

// Hint is the text of the bottom bar.
func (st Status) Hint() string {
	if st.Count <= 1 {
		id := st.ID
		if id == "" {
			id = "N/A"
		}
		return fmt.Sprintf("File: %s. Single-file mode.", id)
	}
	return fmt.Sprintf("%s. File: %s. [%d/%d]", st.Label, st.ID, st.Index+1, st.Count)
}
