package svgdoc

import (
	"errors"
	"math"
	"strings"

	"golang.org/x/image/math/f64"
)

var errParamMismatch = errors.New("param mismatch")

// Matrix is an affine transform:
//
//	x' = A*x + C*y + E
//	y' = B*x + D*y + F
type Matrix struct{ A, B, C, D, E, F float64 }

// Identity is the neutral transform.
var Identity = Matrix{A: 1, D: 1}

// Mult returns a*b, that is b applied first.
func (a Matrix) Mult(b Matrix) Matrix {
	return Matrix{
		A: a.A*b.A + a.C*b.B,
		B: a.B*b.A + a.D*b.B,
		C: a.A*b.C + a.C*b.D,
		D: a.B*b.C + a.D*b.D,
		E: a.A*b.E + a.C*b.F + a.E,
		F: a.B*b.E + a.D*b.F + a.F,
	}
}

func (a Matrix) Translate(x, y float64) Matrix { return a.Mult(Matrix{A: 1, D: 1, E: x, F: y}) }

func (a Matrix) Scale(x, y float64) Matrix { return a.Mult(Matrix{A: x, D: y}) }

func (a Matrix) Rotate(theta float64) Matrix {
	s, c := math.Sincos(theta)
	return a.Mult(Matrix{A: c, B: s, C: -s, D: c})
}

func (a Matrix) SkewX(theta float64) Matrix { return a.Mult(Matrix{A: 1, C: math.Tan(theta), D: 1}) }

func (a Matrix) SkewY(theta float64) Matrix { return a.Mult(Matrix{A: 1, B: math.Tan(theta), D: 1}) }

// Apply transforms the point (x, y).
func (a Matrix) Apply(x, y float64) (float64, float64) {
	return a.A*x + a.C*y + a.E, a.B*x + a.D*y + a.F
}

// Aff3 returns the transform in the layout used by golang.org/x/image/draw.
func (a Matrix) Aff3() f64.Aff3 {
	return f64.Aff3{a.A, a.C, a.E, a.B, a.D, a.F}
}

// ParseTransform parses the value of a transform attribute,
// such as "translate(10 20) scale(2)".
func ParseTransform(v string) (Matrix, error) {
	m := Identity
	for _, t := range strings.Split(v, ")") {
		t = strings.TrimSpace(t)
		t = strings.TrimLeft(t, ", ")
		if len(t) == 0 {
			continue
		}
		d := strings.Split(t, "(")
		if len(d) != 2 || len(d[1]) < 1 {
			return m, errParamMismatch // badly formed transformation
		}
		points, err := parseNumbers(d[1])
		if err != nil {
			return m, err
		}
		m, err = applyTransform(m, strings.ToLower(strings.TrimSpace(d[0])), points)
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func applyTransform(m Matrix, k string, p []float64) (Matrix, error) {
	ln := len(p)
	switch k {
	case "rotate":
		if ln == 1 {
			return m.Rotate(p[0] * math.Pi / 180), nil
		} else if ln == 3 {
			return m.Translate(p[1], p[2]).Rotate(p[0]*math.Pi/180).Translate(-p[1], -p[2]), nil
		}
	case "translate":
		if ln == 1 {
			return m.Translate(p[0], 0), nil
		} else if ln == 2 {
			return m.Translate(p[0], p[1]), nil
		}
	case "skewx":
		if ln == 1 {
			return m.SkewX(p[0] * math.Pi / 180), nil
		}
	case "skewy":
		if ln == 1 {
			return m.SkewY(p[0] * math.Pi / 180), nil
		}
	case "scale":
		if ln == 1 {
			return m.Scale(p[0], p[0]), nil
		} else if ln == 2 {
			return m.Scale(p[0], p[1]), nil
		}
	case "matrix":
		if ln == 6 {
			return m.Mult(Matrix{A: p[0], B: p[1], C: p[2], D: p[3], E: p[4], F: p[5]}), nil
		}
	}
	return m, errParamMismatch
}
