// Command svgplay plays back a sequence of SVG documents.
//
// Inputs are SVG files, possibly holding several documents separated by
// split markers, or a single stream read from standard input.
// The sequence is either exported as PNG files (-export) or
// served to a browser viewer (-http).
//
//	svgplay -http :8080 -watch movie.svg
//	python plot.py | svgplay -export out/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/render"
	"github.com/benoitkugler/svgplay/sequence"
	"github.com/benoitkugler/svgplay/svgdoc"
	_ "github.com/benoitkugler/svgplay/svgraster" // registers the oksvg backend
	"github.com/benoitkugler/svgplay/tempfile"
	"golang.org/x/term"
)

var errNoInput = errors.New("no input: give SVG files, or pipe a document on standard input")

type options struct {
	cfg           config.Config
	export        string
	width, height int
	httpAddr      string
	watch         bool
	verbose       bool
	inputs        []string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{cfg: config.Default()}
	fs := flag.NewFlagSet("svgplay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.cfg.RegisterFlags(fs)
	fs.StringVar(&opts.export, "export", "", "write every frame as a PNG file in this directory")
	fs.IntVar(&opts.width, "width", 800, "window width, in pixels")
	fs.IntVar(&opts.height, "height", 600, "window height, in pixels")
	fs.StringVar(&opts.httpAddr, "http", "", "serve the browser viewer on this address")
	fs.BoolVar(&opts.watch, "watch", false, "reload the input files when they change (with -http)")
	fs.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: svgplay [flags] [file.svg ...|-]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.inputs = fs.Args()
	if err := opts.cfg.Validate(); err != nil {
		return opts, err
	}
	if opts.export == "" && opts.httpAddr == "" {
		return opts, errors.New("one of -export or -http is required")
	}
	return opts, nil
}

// resolveInputs returns the files to load, or useStdin.
// File arguments win over standard input; "-" names standard input explicitly.
func resolveInputs(args []string, stdinIsTerminal bool) (paths []string, useStdin bool, err error) {
	dash := false
	for _, a := range args {
		if a == "-" {
			dash = true
			continue
		}
		paths = append(paths, a)
	}
	switch {
	case len(paths) != 0:
		return paths, false, nil
	case dash || !stdinIsTerminal:
		return nil, true, nil
	default:
		return nil, false, errNoInput
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stderr))
}

func run(args []string, stdin *os.File, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "svgplay:", err)
		return 2
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	temps := tempfile.New(opts.cfg.TempDir, opts.cfg.MaxTempFiles, logger)
	defer temps.Cleanup()

	if err := execute(ctx, opts, stdin, temps, logger); err != nil {
		logger.Error("svgplay: failed", "err", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, opts options, stdin *os.File, temps *tempfile.Registry, logger *slog.Logger) error {
	cfg := opts.cfg
	backend, err := svgdoc.Lookup(cfg.Backend, svgdoc.Options{
		ParseMode:       cfg.ParseMode,
		MaxInlineRaster: cfg.MaxInlineRaster,
		DefaultWidth:    cfg.DefaultWidth,
		DefaultHeight:   cfg.DefaultHeight,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, svgdoc.Backends())
	}

	paths, useStdin, err := resolveInputs(opts.inputs, term.IsTerminal(int(stdin.Fd())))
	if err != nil {
		return err
	}

	loader := sequence.NewLoader(cfg, backend, temps, logger)
	var seq *sequence.Sequence
	if useStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading standard input: %w", err)
		}
		seq, err = loader.LoadStream(data)
		if err != nil {
			return err
		}
	} else {
		seq, err = loader.LoadFiles(paths)
		if err != nil {
			return err
		}
	}
	defer func() { seq.Close() }()

	pipeline := render.New(cfg, backend, logger)
	if opts.export != "" {
		if err := exportFrames(ctx, seq, pipeline, opts.export, opts.width, opts.height, logger); err != nil {
			return err
		}
	}
	if opts.httpAddr == "" {
		return nil
	}

	srv := newServer(cfg, seq, pipeline, opts.width, opts.height, logger)
	if opts.watch {
		if useStdin {
			logger.Warn("svgplay: -watch ignored for standard input")
		} else {
			changes, err := watchFiles(ctx, paths, watchDebounce, logger)
			if err != nil {
				return err
			}
			srv.reload = func() (*sequence.Sequence, error) { return loader.LoadFiles(paths) }
			srv.temps = temps
			srv.changes = changes
		}
	}
	err = srv.serve(ctx, opts.httpAddr)
	seq = srv.session.Sequence() // closed on return
	return err
}
