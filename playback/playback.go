// Package playback implements the frame timer of a sequence.
package playback

import "time"

// Controller owns the current index, the frame rate and the running flag
// of a sequence of count frames. Its invariants are
//
//	0 <= index < count, when count > 0
//	minFPS <= fps <= maxFPS
//	playing => count > 1
type Controller struct {
	count          int
	index          int
	fps            int
	minFPS, maxFPS int
	playing        bool

	last time.Time // baseline used by Tick
}

// New returns a controller positioned on the first frame, running iff count > 1.
func New(count, fps, minFPS, maxFPS int) *Controller {
	if minFPS < 1 {
		minFPS = 1
	}
	if maxFPS < minFPS {
		maxFPS = minFPS
	}
	c := &Controller{count: count, minFPS: minFPS, maxFPS: maxFPS, playing: count > 1}
	c.SetFPS(fps)
	return c
}

func (c *Controller) Count() int    { return c.count }
func (c *Controller) Index() int    { return c.index }
func (c *Controller) FPS() int      { return c.fps }
func (c *Controller) Playing() bool { return c.playing }

// Interval is the time between two frames.
func (c *Controller) Interval() time.Duration { return time.Second / time.Duration(c.fps) }

// Advance moves to the next frame, wrapping around.
func (c *Controller) Advance() {
	if c.count == 0 {
		return
	}
	c.index = (c.index + 1) % c.count
}

// Previous moves to the previous frame, wrapping around.
func (c *Controller) Previous() {
	if c.count == 0 {
		return
	}
	c.index = (c.index - 1 + c.count) % c.count
}

// Next is Advance, named for the user command.
func (c *Controller) Next() { c.Advance() }

// Seek moves to index i, clamped to the valid range.
func (c *Controller) Seek(i int) {
	if c.count == 0 {
		return
	}
	if i < 0 {
		i = 0
	} else if i >= c.count {
		i = c.count - 1
	}
	c.index = i
}

// MaybeAdvance advances when running and at least one frame interval
// has elapsed since the caller's baseline. A true return tells
// the caller to reset its baseline.
func (c *Controller) MaybeAdvance(elapsed time.Duration) bool {
	if !c.playing || elapsed < c.Interval() {
		return false
	}
	c.Advance()
	return true
}

// Tick is MaybeAdvance with the baseline kept by the controller.
// The first call only sets the baseline.
func (c *Controller) Tick(now time.Time) bool {
	if c.last.IsZero() || !c.playing {
		c.last = now
		return false
	}
	if c.MaybeAdvance(now.Sub(c.last)) {
		c.last = now
		return true
	}
	return false
}

// SetFPS clamps n to the configured bounds.
func (c *Controller) SetFPS(n int) {
	if n < c.minFPS {
		n = c.minFPS
	} else if n > c.maxFPS {
		n = c.maxFPS
	}
	c.fps = n
}

func (c *Controller) Faster() { c.SetFPS(c.fps + 1) }
func (c *Controller) Slower() { c.SetFPS(c.fps - 1) }

// Play starts playback; it has no effect on sequences of one frame or less.
func (c *Controller) Play() {
	if c.count > 1 {
		c.playing = true
	}
}

func (c *Controller) Pause() { c.playing = false }

// TogglePlaying switches between running and paused.
func (c *Controller) TogglePlaying() {
	if c.playing {
		c.Pause()
	} else {
		c.Play()
	}
}
