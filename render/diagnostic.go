package render

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	diagMaxWidth = 480
	diagPadding  = 10
	diagBorder   = 2
)

var diagFace = basicfont.Face7x13

// DrawDiagnostic paints a bordered box holding msg, centered in area.
func DrawDiagnostic(dst draw.Image, area image.Rectangle, msg string, fill, ink color.Color) {
	advance := diagFace.Advance
	lineHeight := diagFace.Height

	boxW := area.Dx() - 2*diagPadding
	if boxW > diagMaxWidth {
		boxW = diagMaxWidth
	}
	cols := (boxW - 2*diagPadding - 2*diagBorder) / advance
	if cols < 1 {
		return
	}
	lines := wrap(msg, cols)
	boxH := len(lines)*lineHeight + 2*diagPadding + 2*diagBorder
	if boxH > area.Dy() {
		boxH = area.Dy()
	}

	min := image.Pt(area.Min.X+(area.Dx()-boxW)/2, area.Min.Y+(area.Dy()-boxH)/2)
	box := image.Rectangle{Min: min, Max: min.Add(image.Pt(boxW, boxH))}
	draw.Draw(dst, box, image.NewUniform(ink), image.Point{}, draw.Src)
	draw.Draw(dst, box.Inset(diagBorder), image.NewUniform(fill), image.Point{}, draw.Src)

	d := font.Drawer{Dst: clip(dst, box.Inset(diagBorder)), Src: image.NewUniform(ink), Face: diagFace}
	y := box.Min.Y + diagBorder + diagPadding + diagFace.Ascent
	for _, line := range lines {
		d.Dot = fixed.P(box.Min.X+diagBorder+diagPadding, y)
		d.DrawString(line)
		y += lineHeight
	}
}

// wrap splits text into lines of at most cols characters,
// breaking words only when they don't fit on a line.
func wrap(text string, cols int) []string {
	var (
		lines   []string
		current string
	)
	for _, word := range strings.Fields(text) {
		for len(word) > cols {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, word[:cols])
			word = word[cols:]
		}
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= cols:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
