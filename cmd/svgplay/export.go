package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benoitkugler/svgplay/render"
	"github.com/benoitkugler/svgplay/sequence"
)

func exportName(index int) string { return fmt.Sprintf("frame-%03d.png", index) }

// exportFrames writes every frame of seq, without bars, as a width x height
// PNG file in dir. Bitmaps are dropped once written.
func exportFrames(ctx context.Context, seq *sequence.Sequence, pipeline *render.Pipeline, dir string, width, height int, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	params := render.Params{WindowWidth: width, WindowHeight: height, Zoom: 1}
	for i, f := range seq.Frames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		pipeline.Render(f, img, params)
		f.DropBitmap()

		path := filepath.Join(dir, exportName(i))
		if err := writePNG(path, img); err != nil {
			return fmt.Errorf("exporting %s: %w", f.ID, err)
		}
		logger.Debug("export: frame written", "id", f.ID, "path", path)
	}
	logger.Info("export: done", "frames", seq.Len(), "dir", dir)
	return nil
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
