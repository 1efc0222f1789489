package svgdoc

import (
	"errors"
	"strconv"
	"strings"
)

var errInvalidLength = errors.New("invalid length")

// pixels per unit, at 96 dpi
var unitToPixels = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96. / 72,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"em": 16,
	"ex": 8,
}

// Length is an SVG length resolved to pixels.
// Relative lengths (percentages) are not absolute and carry no pixel value.
type Length struct {
	Pixels   float64
	Absolute bool
	Set      bool
}

// ParseLength parses a number followed by an optional unit.
func ParseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Length{}, nil
	}
	if strings.HasSuffix(s, "%") {
		if _, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err != nil {
			return Length{}, errInvalidLength
		}
		return Length{Set: true}, nil
	}
	i := len(s)
	for i > 0 && (s[i-1] >= 'a' && s[i-1] <= 'z' || s[i-1] >= 'A' && s[i-1] <= 'Z') {
		i--
	}
	factor, ok := unitToPixels[strings.ToLower(s[i:])]
	if !ok {
		return Length{}, errInvalidLength
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return Length{}, errInvalidLength
	}
	return Length{Pixels: v * factor, Absolute: true, Set: true}, nil
}

// parseNumbers splits on commas and white space.
func parseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
