// Package sequence loads inputs into an ordered list of frames,
// and bundles it with its playback controller.
package sequence

import (
	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/frame"
	"github.com/benoitkugler/svgplay/playback"
)

// Sequence owns its frames, with their documents and bitmaps.
type Sequence struct {
	frames   []*frame.Frame
	playback *playback.Controller
}

// New wraps frames, positioned on the first one, with the
// playback settings of cfg.
func New(frames []*frame.Frame, cfg config.Config) *Sequence {
	return &Sequence{
		frames:   frames,
		playback: playback.New(len(frames), cfg.InitialFPS, cfg.MinFPS, cfg.MaxFPS),
	}
}

func (s *Sequence) Len() int { return len(s.frames) }

// Frame returns the frame at index i.
func (s *Sequence) Frame(i int) *frame.Frame { return s.frames[i] }

// Frames returns the frames in order. The slice must not be modified.
func (s *Sequence) Frames() []*frame.Frame { return s.frames }

// Current returns the frame selected by the playback controller,
// or nil for an empty sequence.
func (s *Sequence) Current() *frame.Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[s.playback.Index()]
}

func (s *Sequence) Playback() *playback.Controller { return s.playback }

// Close releases every document and bitmap.
// Temporary files are not removed: they belong to the registry.
func (s *Sequence) Close() {
	for _, f := range s.frames {
		f.Unload()
	}
}
