package svgdoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNoRoot is returned when the input is not an <svg> document.
var ErrNoRoot = errors.New("missing <svg> root element")

// Image is a raster <image> element found while probing.
type Image struct {
	X, Y, W, H float64
	Href       string
	// Transform maps the image user space to the root user space.
	// It accumulates the transform attributes of the element and its ancestors.
	Transform Matrix
	// PreserveAspectRatio is the raw attribute value.
	PreserveAspectRatio string
}

// Info is what Probe reads from a document.
type Info struct {
	Width, Height Length
	ViewBox       Viewport
	HasViewBox    bool
	// PreserveAspectRatio is the raw root attribute.
	PreserveAspectRatio string
	Images              []Image
}

// IntrinsicSize resolves the root dimensions to pixels.
// A missing dimension is derived from the view box aspect ratio;
// without absolute dimensions, the view box size is used.
func (info Info) IntrinsicSize() (w, h float64, ok bool) {
	wAbs, hAbs := info.Width.Absolute && info.Width.Pixels > 0, info.Height.Absolute && info.Height.Pixels > 0
	vbOK := info.HasViewBox && info.ViewBox.W > 0 && info.ViewBox.H > 0
	switch {
	case wAbs && hAbs:
		return info.Width.Pixels, info.Height.Pixels, true
	case wAbs && vbOK:
		return info.Width.Pixels, info.Width.Pixels * info.ViewBox.H / info.ViewBox.W, true
	case hAbs && vbOK:
		return info.Height.Pixels * info.ViewBox.W / info.ViewBox.H, info.Height.Pixels, true
	case vbOK:
		return info.ViewBox.W, info.ViewBox.H, true
	}
	return 0, 0, false
}

// element whose content is never rendered directly
var hiddenContainers = map[string]bool{
	"defs":     true,
	"clipPath": true,
	"mask":     true,
	"pattern":  true,
	"symbol":   true,
	"marker":   true,
}

// Probe reads the root attributes and the <image> elements of an SVG document.
// Malformed optional attributes are ignored; malformed XML is an error.
func Probe(r io.Reader) (Info, error) {
	var (
		info    Info
		stack   = []Matrix{Identity}
		hidden  = 0 // depth inside hidden containers
		seenTag = false
	)
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	for {
		t, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				if !seenTag {
					return info, ErrNoRoot
				}
				return info, nil
			}
			return info, fmt.Errorf("svgdoc: %w", err)
		}
		switch se := t.(type) {
		case xml.StartElement:
			if !seenTag {
				if se.Name.Local != "svg" {
					return info, ErrNoRoot
				}
				seenTag = true
				readRoot(&info, se.Attr)
			}
			m := stack[len(stack)-1]
			if v := attr(se.Attr, "transform"); v != "" {
				if own, err := ParseTransform(v); err == nil {
					m = m.Mult(own)
				}
			}
			stack = append(stack, m)
			if hidden > 0 || hiddenContainers[se.Name.Local] {
				hidden++
				continue
			}
			if se.Name.Local == "image" {
				info.Images = append(info.Images, readImage(se.Attr, m))
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if hidden > 0 {
				hidden--
			}
		}
	}
}

func readRoot(info *Info, attrs []xml.Attr) {
	info.Width, _ = ParseLength(attr(attrs, "width"))
	info.Height, _ = ParseLength(attr(attrs, "height"))
	info.PreserveAspectRatio = strings.TrimSpace(attr(attrs, "preserveAspectRatio"))
	if v := attr(attrs, "viewBox"); v != "" {
		if nums, err := parseNumbers(v); err == nil && len(nums) == 4 {
			info.ViewBox = Viewport{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}
			info.HasViewBox = true
		}
	}
}

func readImage(attrs []xml.Attr, m Matrix) Image {
	img := Image{Transform: m}
	for _, a := range attrs {
		switch a.Name.Local {
		case "x":
			l, _ := ParseLength(a.Value)
			img.X = l.Pixels
		case "y":
			l, _ := ParseLength(a.Value)
			img.Y = l.Pixels
		case "width":
			l, _ := ParseLength(a.Value)
			img.W = l.Pixels
		case "height":
			l, _ := ParseLength(a.Value)
			img.H = l.Pixels
		case "href": // also matches xlink:href
			img.Href = strings.TrimSpace(a.Value)
		case "preserveAspectRatio":
			img.PreserveAspectRatio = strings.TrimSpace(a.Value)
		}
	}
	return img
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
