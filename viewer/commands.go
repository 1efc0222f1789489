package viewer

import (
	"errors"
	"fmt"
)

// Command is a user action without argument.
type Command string

const (
	CmdNext    Command = "next"
	CmdPrev    Command = "prev"
	CmdToggle  Command = "toggle"
	CmdPlay    Command = "play"
	CmdPause   Command = "pause"
	CmdFaster  Command = "faster"
	CmdSlower  Command = "slower"
	CmdZoomIn  Command = "zoom-in"
	CmdZoomOut Command = "zoom-out"
	CmdHome    Command = "home"
	CmdQuit    Command = "quit"

	// pointer modes; while a mode is off, its commands are ignored
	CmdZoomMode Command = "zoom-mode"
	CmdDragMode Command = "drag-mode"

	// commands with arguments, see Message
	CmdPan    Command = "pan"
	CmdResize Command = "resize"
	CmdSeek   Command = "seek"
)

// ErrUnknownCommand is returned by Apply and Handle.
var ErrUnknownCommand = errors.New("unknown command")

// ErrQuit is returned when the user asks to leave.
var ErrQuit = errors.New("quit requested")

// keyBindings follows the desktop viewer shortcuts.
var keyBindings = map[string]Command{
	"ArrowLeft":  CmdPrev,
	"n":          CmdPrev,
	"ArrowRight": CmdNext,
	"m":          CmdNext,
	" ":          CmdToggle,
	"p":          CmdPause,
	"r":          CmdPlay,
	"+":          CmdFaster,
	"=":          CmdFaster,
	"-":          CmdSlower,
	"_":          CmdSlower,
	"ArrowUp":    CmdZoomIn,
	"ArrowDown":  CmdZoomOut,
	"h":          CmdHome,
	"Home":       CmdHome,
	"z":          CmdZoomMode,
	"d":          CmdDragMode,
	"q":          CmdQuit,
	"Escape":     CmdQuit,
}

// KeyCommand maps a key name (as reported by browsers) to a command.
func KeyCommand(key string) (Command, bool) {
	c, ok := keyBindings[key]
	return c, ok
}

// Apply runs a command without argument.
func (s *Session) Apply(c Command) error {
	pb := s.seq.Playback()
	switch c {
	case CmdNext:
		s.Next()
	case CmdPrev:
		s.Prev()
	case CmdToggle:
		pb.TogglePlaying()
	case CmdPlay:
		pb.Play()
	case CmdPause:
		pb.Pause()
	case CmdFaster:
		pb.Faster()
	case CmdSlower:
		pb.Slower()
	case CmdZoomIn:
		if s.zoomMode {
			s.ZoomIn()
		}
	case CmdZoomOut:
		if s.zoomMode {
			s.ZoomOut()
		}
	case CmdZoomMode:
		s.zoomMode = !s.zoomMode
	case CmdDragMode:
		s.dragMode = !s.dragMode
	case CmdHome:
		s.Home()
	case CmdQuit:
		return ErrQuit
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, c)
	}
	s.logger.Debug("viewer: command", "cmd", string(c))
	return nil
}

// Message is the JSON form of a command, as sent by remote hosts.
type Message struct {
	Cmd    Command `json:"cmd"`
	Key    string  `json:"key,omitempty"` // alternative to Cmd
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Index  int     `json:"index,omitempty"`
}

// Handle runs a message.
func (s *Session) Handle(m Message) error {
	cmd := m.Cmd
	if cmd == "" && m.Key != "" {
		var ok bool
		if cmd, ok = KeyCommand(m.Key); !ok {
			return fmt.Errorf("%w: no binding for key %q", ErrUnknownCommand, m.Key)
		}
	}
	switch cmd {
	case CmdPan:
		if s.dragMode {
			s.MoveBy(m.DX, m.DY)
		}
	case CmdResize:
		s.Resize(m.Width, m.Height)
	case CmdSeek:
		pb := s.seq.Playback()
		pb.Pause()
		pb.Seek(m.Index)
	default:
		return s.Apply(cmd)
	}
	return nil
}
