// Package config holds the settings shared by the loader, the render
// pipeline, the playback controller and the hosts.
// A single Config value is built at startup and passed explicitly;
// no package reads global state.
package config

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/colornames"
)

// Config is the runtime configuration of a viewer session.
type Config struct {
	// Loading
	MaxFrames       int     // frames accepted across all inputs
	MaxTempFiles    int     // files the temp registry may create
	TempDir         string  // directory for extracted rasters, defaults to os.TempDir()
	Backend         string  // rendering adapter, see svgdoc.Lookup
	ParseMode       string  // "ignore", "warn" or "strict"
	MaxInlineRaster int     // bytes; larger data: URIs go through extraction
	DefaultWidth    float64 // used when a document has no intrinsic size
	DefaultHeight   float64

	// Viewport
	MinZoom, MaxZoom, ZoomStep float64
	ZoomSettle                 time.Duration // quiet time ending a zoom gesture

	// Playback
	MinFPS, MaxFPS, InitialFPS int

	// Cache invalidation tolerances.
	WindowTolerance int     // pixels
	ZoomTolerance   float64 // relative to the cached zoom
	MaxBitmapPixels int
	Interpolation   string // "nearest", "approx-bilinear", "bilinear" or "catmull-rom"

	Background color.NRGBA
	BarColor   color.NRGBA
	TextColor  color.NRGBA

	// Session
	MinWindowWidth, MinWindowHeight int
	BarRatio                        float64
	MinBarHeight                    int
}

// Default returns the configuration used when no flag overrides it.
func Default() Config {
	return Config{
		MaxFrames:       200,
		MaxTempFiles:    1000,
		TempDir:         os.TempDir(),
		Backend:         "oksvg",
		ParseMode:       "ignore",
		MaxInlineRaster: 1 << 20,
		DefaultWidth:    800,
		DefaultHeight:   600,

		MinZoom:  0.1,
		MaxZoom:  8,
		ZoomStep: 0.05,

		ZoomSettle: 300 * time.Millisecond,

		MinFPS:     1,
		MaxFPS:     30,
		InitialFPS: 4,

		WindowTolerance: 50,
		ZoomTolerance:   0.5,
		MaxBitmapPixels: 64 << 20,
		Interpolation:   "approx-bilinear",

		Background: color.NRGBA{0xff, 0xff, 0xff, 0xff},
		BarColor:   color.NRGBA{0xee, 0xee, 0xee, 0xff},
		TextColor:  color.NRGBA{0x33, 0x33, 0x33, 0xff},

		MinWindowWidth:  500,
		MinWindowHeight: 450,
		BarRatio:        0.06,
		MinBarHeight:    32,
	}
}

var (
	errNonPositive = errors.New("must be positive")
	errRange       = errors.New("min is larger than max")
)

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	positives := []struct {
		name string
		v    float64
	}{
		{"max-frames", float64(c.MaxFrames)},
		{"max-temp-files", float64(c.MaxTempFiles)},
		{"default-width", c.DefaultWidth},
		{"default-height", c.DefaultHeight},
		{"min-zoom", c.MinZoom},
		{"zoom-step", c.ZoomStep},
		{"zoom-settle", float64(c.ZoomSettle)},
		{"min-fps", float64(c.MinFPS)},
		{"zoom-tolerance", c.ZoomTolerance},
		{"max-bitmap-pixels", float64(c.MaxBitmapPixels)},
	}
	for _, p := range positives {
		if p.v <= 0 {
			return fmt.Errorf("config: %s %w", p.name, errNonPositive)
		}
	}
	if c.WindowTolerance < 0 {
		return fmt.Errorf("config: window-tolerance %w", errNonPositive)
	}
	if c.MinZoom > c.MaxZoom {
		return fmt.Errorf("config: zoom: %w", errRange)
	}
	if c.MinFPS > c.MaxFPS {
		return fmt.Errorf("config: fps: %w", errRange)
	}
	switch c.ParseMode {
	case "ignore", "warn", "strict":
	default:
		return fmt.Errorf("config: unknown parse mode %q", c.ParseMode)
	}
	switch c.Interpolation {
	case "nearest", "approx-bilinear", "bilinear", "catmull-rom":
	default:
		return fmt.Errorf("config: unknown interpolation %q", c.Interpolation)
	}
	return nil
}

// RegisterFlags binds the configuration fields to fs.
// The values currently held by c are used as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.MaxFrames, "max-frames", c.MaxFrames, "maximum number of frames to load")
	fs.IntVar(&c.MaxTempFiles, "max-temp-files", c.MaxTempFiles, "maximum number of temporary files created while loading")
	fs.StringVar(&c.TempDir, "temp-dir", c.TempDir, "directory for extracted raster payloads")
	fs.StringVar(&c.Backend, "backend", c.Backend, "rendering backend")
	fs.StringVar(&c.ParseMode, "parse-mode", c.ParseMode, "handling of unsupported SVG elements: ignore, warn or strict")
	fs.IntVar(&c.MaxInlineRaster, "max-inline-raster", c.MaxInlineRaster, "largest inline data: image, in bytes, decoded without extraction")
	fs.Float64Var(&c.MinZoom, "min-zoom", c.MinZoom, "lower zoom bound")
	fs.Float64Var(&c.MaxZoom, "max-zoom", c.MaxZoom, "upper zoom bound")
	fs.DurationVar(&c.ZoomSettle, "zoom-settle", c.ZoomSettle, "time without zoom events ending a zoom gesture")
	fs.IntVar(&c.InitialFPS, "fps", c.InitialFPS, "initial frames per second")
	fs.IntVar(&c.MinFPS, "min-fps", c.MinFPS, "lower fps bound")
	fs.IntVar(&c.MaxFPS, "max-fps", c.MaxFPS, "upper fps bound")
	fs.IntVar(&c.WindowTolerance, "cache-window-tolerance", c.WindowTolerance, "window size change, in pixels, tolerated before re-rasterizing")
	fs.Float64Var(&c.ZoomTolerance, "cache-zoom-tolerance", c.ZoomTolerance, "relative zoom change tolerated before re-rasterizing")
	fs.StringVar(&c.Interpolation, "interpolation", c.Interpolation, "scaler used for cached bitmaps")
	fs.Var((*colorValue)(&c.Background), "background", "content background (SVG color name or #rrggbb)")
}

// colorValue implements flag.Value on top of ParseColor.
type colorValue color.NRGBA

func (v *colorValue) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("#%02x%02x%02x", v.R, v.G, v.B)
}

func (v *colorValue) Set(s string) error {
	c, err := ParseColor(s)
	if err != nil {
		return err
	}
	*v = colorValue(c)
	return nil
}

// ParseColor accepts an SVG color keyword, #rgb or #rrggbb.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{c.R, c.G, c.B, c.A}, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.NRGBA{}, fmt.Errorf("config: unknown color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("config: invalid color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("config: invalid color %q: %w", s, err)
	}
	return color.NRGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 0xff}, nil
}
