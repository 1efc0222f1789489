package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/render"
	"github.com/benoitkugler/svgplay/sequence"
	"github.com/benoitkugler/svgplay/svgdoc"
	"github.com/benoitkugler/svgplay/tempfile"
	"github.com/benoitkugler/svgplay/viewer"
	"github.com/gorilla/websocket"
)

const stream = `<!-- RSFPY_SPLIT framelabel="red" -->
<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50"><rect width="100" height="50" fill="red"/></svg>
<!-- RSFPY_SPLIT framelabel="green" -->
<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50"><rect width="100" height="50" fill="green"/></svg>
`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func loadStream(t *testing.T) (*sequence.Sequence, *render.Pipeline) {
	t.Helper()
	cfg := config.Default()
	backend, err := svgdoc.Lookup(cfg.Backend, svgdoc.Options{DefaultWidth: 800, DefaultHeight: 600, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	temps := tempfile.New(t.TempDir(), cfg.MaxTempFiles, quiet)
	t.Cleanup(temps.Cleanup)
	seq, err := sequence.NewLoader(cfg, backend, temps, quiet).LoadStream([]byte(stream))
	if err != nil {
		t.Fatal(err)
	}
	return seq, render.New(cfg, backend, quiet)
}

func TestResolveInputs(t *testing.T) {
	for _, test := range []struct {
		args     []string
		terminal bool
		paths    []string
		stdin    bool
		err      error
	}{
		{[]string{"a.svg", "b.svg"}, true, []string{"a.svg", "b.svg"}, false, nil},
		{[]string{"a.svg"}, false, []string{"a.svg"}, false, nil},
		{[]string{"-", "a.svg"}, false, []string{"a.svg"}, false, nil},
		{[]string{"-"}, true, nil, true, nil},
		{nil, false, nil, true, nil},
		{nil, true, nil, false, errNoInput},
	} {
		paths, stdin, err := resolveInputs(test.args, test.terminal)
		if !errors.Is(err, test.err) {
			t.Errorf("%v: unexpected error %v", test.args, err)
		}
		if !reflect.DeepEqual(paths, test.paths) || stdin != test.stdin {
			t.Errorf("%v: got %v %v", test.args, paths, stdin)
		}
	}
}

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-export", "out", "-fps", "10", "-width", "320", "a.svg"}, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if opts.export != "out" || opts.width != 320 || opts.cfg.InitialFPS != 10 || len(opts.inputs) != 1 {
		t.Errorf("unexpected options %+v", opts)
	}

	if _, err := parseArgs([]string{"a.svg"}, &stderr); err == nil {
		t.Error("expected an error without -export nor -http")
	}
	if _, err := parseArgs([]string{"-http", ":0", "-min-zoom", "4", "-max-zoom", "2"}, &stderr); err == nil {
		t.Error("expected a validation error")
	}
}

func TestExport(t *testing.T) {
	seq, pipeline := loadStream(t)
	dir := filepath.Join(t.TempDir(), "out")
	if err := exportFrames(context.Background(), seq, pipeline, dir, 200, 100, quiet); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < seq.Len(); i++ {
		f, err := os.Open(filepath.Join(dir, exportName(i)))
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
			t.Errorf("frame %d: unexpected size %v", i, b)
		}
		if _, _, ok := seq.Frame(i).Bitmap(); ok {
			t.Errorf("frame %d: bitmap should be dropped after export", i)
		}
	}
	if exportName(7) != "frame-007.png" {
		t.Errorf("unexpected name %s", exportName(7))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exportFrames(ctx, seq, pipeline, dir, 200, 100, quiet); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// readStatus reads messages until a status matching ok, checking
// that each status is preceded by a PNG image.
func readStatus(t *testing.T, conn *websocket.Conn, ok func(viewer.Status) bool) viewer.Status {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawImage := false
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if kind == websocket.BinaryMessage {
			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Width != 800 || cfg.Height != 600 {
				t.Fatalf("unexpected image size %dx%d", cfg.Width, cfg.Height)
			}
			sawImage = true
			continue
		}
		if !sawImage {
			t.Fatal("status received before its image")
		}
		var st viewer.Status
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatal(err)
		}
		if ok(st) {
			return st
		}
		sawImage = false
	}
}

func TestServe(t *testing.T) {
	seq, pipeline := loadStream(t)
	srv := newServer(config.Default(), seq, pipeline, 800, 600, quiet)
	reloaded := make(chan struct{}, 1)
	srv.changes = reloaded
	srv.reload = func() (*sequence.Sequence, error) {
		s, _ := loadStream(t)
		return s, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		srv.loop(ctx)
		close(loopDone)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(page), "/ws") {
		t.Error("the index page should open the websocket")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	st := readStatus(t, conn, func(viewer.Status) bool { return true })
	if st.Count != 2 {
		t.Fatalf("unexpected status %+v", st)
	}

	send := func(msg viewer.Message) {
		data, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatal(err)
		}
	}
	send(viewer.Message{Cmd: viewer.CmdPause})
	readStatus(t, conn, func(st viewer.Status) bool { return !st.Playing })
	send(viewer.Message{Cmd: viewer.CmdSeek, Index: 0})
	readStatus(t, conn, func(st viewer.Status) bool { return st.Index == 0 })

	send(viewer.Message{Key: "ArrowRight"})
	st = readStatus(t, conn, func(st viewer.Status) bool { return st.Index == 1 })
	if st.Label != "green" || st.Playing {
		t.Errorf("unexpected status %+v", st)
	}

	send(viewer.Message{Cmd: viewer.CmdZoomIn})
	readStatus(t, conn, func(st viewer.Status) bool { return st.Zoom > 1 })

	// a reload keeps the position and the paused state
	reloaded <- struct{}{}
	st = readStatus(t, conn, func(viewer.Status) bool { return true })
	if st.Index != 1 || st.Playing || st.Count != 2 {
		t.Errorf("unexpected status after reload %+v", st)
	}
}

func TestReloadBudgetWarning(t *testing.T) {
	seq, pipeline := loadStream(t)
	var logs bytes.Buffer
	srv := newServer(config.Default(), seq, pipeline, 800, 600, slog.New(slog.NewTextHandler(&logs, nil)))
	srv.temps = tempfile.New(t.TempDir(), 1, quiet)
	srv.reload = func() (*sequence.Sequence, error) { return nil, sequence.ErrNoFrames }

	if srv.reloadSequence() {
		t.Fatal("a failed reload must keep the previous frames")
	}
	if strings.Contains(logs.String(), "budget exhausted") {
		t.Error("unexpected budget warning")
	}

	srv.temps.Register(filepath.Join(t.TempDir(), "extracted.svg"))
	srv.reloadSequence()
	if !strings.Contains(logs.String(), "temp-file budget exhausted") {
		t.Errorf("expected a budget warning, got %q", logs.String())
	}
	if srv.session.Sequence() != seq {
		t.Error("the previous sequence must be kept")
	}

	logs.Reset()
	srv.temps = nil
	srv.reload = func() (*sequence.Sequence, error) { return nil, fmt.Errorf("extracting: %w", tempfile.ErrLimit) }
	srv.reloadSequence()
	if !strings.Contains(logs.String(), "temp-file budget exhausted") {
		t.Errorf("expected a budget warning for ErrLimit, got %q", logs.String())
	}
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.svg")
	if err := os.WriteFile(path, []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := watchFiles(ctx, []string{path}, 20*time.Millisecond, quiet)
	if err != nil {
		t.Fatal(err)
	}

	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changes:
		t.Fatal("unexpected change notification")
	case <-time.After(100 * time.Millisecond):
	}

	// a burst of writes gives one notification
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("<svg></svg>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	select {
	case <-changes:
		t.Error("expected the burst to be coalesced")
	case <-time.After(100 * time.Millisecond):
	}
}
