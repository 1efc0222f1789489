// Package embedded pulls inline base64 PNG payloads out of a document,
// writes them to temporary files and rewrites the document to reference
// those files instead.
package embedded

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"image/png"

	"github.com/benoitkugler/svgplay/tempfile"
)

// Prefix introduces an embedded payload.
const Prefix = "data:image/png;base64,"

var (
	ErrNoPayload    = errors.New("no embedded PNG payload")
	ErrUnterminated = errors.New("unterminated embedded payload")
	ErrDecode       = errors.New("invalid embedded PNG payload")
)

// Payload locates one embedded raster.
type Payload struct {
	Start int    // offset of Prefix
	End   int    // offset of the terminating character
	Data  []byte // base64 text, between Prefix and End
}

// Scan returns the payloads of doc in order. A payload runs from Prefix
// to the next '"', '\'' or '>'; a payload reaching the end of doc
// is reported as ErrUnterminated.
func Scan(doc []byte) ([]Payload, error) {
	var out []Payload
	pos := 0
	for {
		i := bytes.Index(doc[pos:], []byte(Prefix))
		if i < 0 {
			return out, nil
		}
		start := pos + i
		dataStart := start + len(Prefix)
		j := bytes.IndexAny(doc[dataStart:], `"'>`)
		if j < 0 {
			return out, fmt.Errorf("%w at offset %d", ErrUnterminated, start)
		}
		end := dataStart + j
		out = append(out, Payload{Start: start, End: end, Data: doc[dataStart:end]})
		pos = end
	}
}

// Decode returns the PNG bytes of a payload. White space inside
// the base64 text is ignored, and missing padding is accepted.
func Decode(p Payload) ([]byte, error) {
	text := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, p.Data)
	text = bytes.TrimRight(text, "=")
	data, err := base64.RawStdEncoding.DecodeString(string(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}
	if _, err = png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}
	return data, nil
}

// Extract writes every payload of doc to a registered PNG file, then
// writes the document, with each inline payload replaced by the path of
// its file, to a registered SVG file whose path is returned.
// All payloads are decoded and the temp file budget is checked before
// anything is written, so that a failed extraction creates no file.
func Extract(doc []byte, reg *tempfile.Registry) (string, error) {
	payloads, err := Scan(doc)
	if err != nil {
		return "", err
	}
	if len(payloads) == 0 {
		return "", ErrNoPayload
	}
	decoded := make([][]byte, len(payloads))
	for i, p := range payloads {
		decoded[i], err = Decode(p)
		if err != nil {
			return "", fmt.Errorf("payload %d: %w", i, err)
		}
	}
	if need := len(payloads) + 1; reg.Remaining() < need {
		return "", fmt.Errorf("%w: extraction needs %d files, %d left", tempfile.ErrLimit, need, reg.Remaining())
	}

	var rewritten bytes.Buffer
	last := 0
	for i, p := range payloads {
		path, err := reg.WriteFile(".png", decoded[i])
		if err != nil {
			return "", err
		}
		rewritten.Write(doc[last:p.Start])
		rewritten.WriteString(html.EscapeString(path))
		last = p.End
	}
	rewritten.Write(doc[last:])

	return reg.WriteFile(".svg", rewritten.Bytes())
}
