// Package marker splits a concatenation of SVG documents on split markers:
//
//	<!-- RSFPY_SPLIT framelabel="t = 0.5 s" -->
//	<svg ...>...</svg>
//	<!-- RSFPY_SPLIT -->
//	<svg ...>...</svg>
//
// The lexer only knows two tokens, the opening marker and the closing "-->",
// plus the optional framelabel attribute found between them.
package marker

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// Open starts a split marker.
	Open = "<!-- RSFPY_SPLIT"
	// Close ends the marker region; the document body follows it.
	Close = "-->"

	labelAttr = `framelabel="`
)

// ErrUnclosed is set on segments whose marker has no closing token.
var ErrUnclosed = errors.New("split marker without closing " + Close)

// Segment is one marker-delimited region.
type Segment struct {
	Index    int // position of the marker in the input, starting at 0
	Label    string
	HasLabel bool
	Body     []byte // trimmed, possibly empty
	Err      error
}

// Empty reports whether the segment carries no document.
func (s Segment) Empty() bool { return s.Err == nil && len(s.Body) == 0 }

// Contains reports whether data holds at least one split marker.
func Contains(data []byte) bool { return bytes.Contains(data, []byte(Open)) }

// Lexer walks the segments of an input, in order.
type Lexer struct {
	data     []byte
	pos      int // start of the next marker, or len(data)
	index    int
	preamble []byte
}

// NewLexer positions a lexer on the first marker of data.
func NewLexer(data []byte) *Lexer {
	l := &Lexer{data: data, pos: len(data)}
	if i := bytes.Index(data, []byte(Open)); i >= 0 {
		l.pos = i
	}
	l.preamble = data[:l.pos]
	return l
}

// Preamble returns the text found before the first marker,
// which is not part of any segment.
func (l *Lexer) Preamble() []byte { return l.preamble }

// Next returns the next segment, or false when the input is exhausted.
func (l *Lexer) Next() (Segment, bool) {
	if l.pos >= len(l.data) {
		return Segment{}, false
	}
	start := l.pos + len(Open)
	end := len(l.data)
	if i := bytes.Index(l.data[start:], []byte(Open)); i >= 0 {
		end = start + i
	}
	l.pos = end
	seg := lexSegment(l.data[start:end])
	seg.Index = l.index
	l.index++
	return seg, true
}

func lexSegment(region []byte) Segment {
	closing := bytes.Index(region, []byte(Close))
	if closing < 0 {
		return Segment{Err: ErrUnclosed}
	}
	var seg Segment
	header := region[:closing]
	if i := bytes.Index(header, []byte(labelAttr)); i >= 0 {
		value := header[i+len(labelAttr):]
		if j := bytes.IndexByte(value, '"'); j > 0 {
			seg.Label, seg.HasLabel = string(value[:j]), true
		}
	}
	seg.Body = bytes.TrimSpace(region[closing+len(Close):])
	return seg
}

// Split returns every segment of data.
func Split(data []byte) []Segment {
	var out []Segment
	l := NewLexer(data)
	for seg, ok := l.Next(); ok; seg, ok = l.Next() {
		out = append(out, seg)
	}
	return out
}

// Find returns the segment at the given marker index.
func Find(data []byte, index int) (Segment, error) {
	l := NewLexer(data)
	for seg, ok := l.Next(); ok; seg, ok = l.Next() {
		if seg.Index == index {
			return seg, seg.Err
		}
	}
	return Segment{}, fmt.Errorf("marker: no segment %d", index)
}
