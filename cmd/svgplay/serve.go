package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"image/png"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benoitkugler/svgplay/config"
	"github.com/benoitkugler/svgplay/render"
	"github.com/benoitkugler/svgplay/sequence"
	"github.com/benoitkugler/svgplay/tempfile"
	"github.com/benoitkugler/svgplay/viewer"
	"github.com/gorilla/websocket"
)

//go:embed static
var staticFiles embed.FS

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla/websocket isn't concurrent-write safe
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// frameUpdate is one rendered state, sent to every client.
type frameUpdate struct {
	png    []byte
	status []byte
}

// server hosts the browser viewer. The session is only touched
// by the control goroutine (see loop).
type server struct {
	cfg     config.Config
	session *viewer.Session
	logger  *slog.Logger

	commands   chan viewer.Message
	register   chan *client
	unregister chan *client
	clients    map[*client]bool
	done       chan struct{} // closed when loop returns

	// optional file watching
	reload  func() (*sequence.Sequence, error)
	changes <-chan struct{}
	temps   *tempfile.Registry // shared with reload, may be nil

	encoder png.Encoder
}

func newServer(cfg config.Config, seq *sequence.Sequence, pipeline *render.Pipeline, width, height int, logger *slog.Logger) *server {
	return &server{
		cfg:        cfg,
		session:    viewer.NewSession(cfg, seq, pipeline, width, height, logger),
		logger:     logger,
		commands:   make(chan viewer.Message, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		done:       make(chan struct{}),
		encoder:    png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// serve listens on addr until ctx is done.
func (s *server) serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Handler: s.handler()}
	s.logger.Info("serve: listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	s.loop(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	for c := range s.clients {
		c.conn.Close()
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("serve: websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn}
	select {
	case s.register <- c:
	case <-s.done:
		conn.Close()
		return
	}
	defer func() {
		select {
		case s.unregister <- c:
		case <-s.done:
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("serve: client left", "remote", r.RemoteAddr, "err", err)
			return
		}
		var msg viewer.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("serve: invalid message", "err", err)
			continue
		}
		select {
		case s.commands <- msg:
		case <-s.done:
			return
		}
	}
}

// tickInterval is half of the shortest frame interval.
func (s *server) tickInterval() time.Duration {
	return time.Second / time.Duration(2*s.cfg.MaxFPS)
}

// loop owns the session: every command, tick and reload runs here.
func (s *server) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()
	for {
		changed := false
		var target *client // only this client needs the current state
		select {
		case <-ctx.Done():
			return
		case c := <-s.register:
			s.clients[c] = true
			target = c
		case c := <-s.unregister:
			delete(s.clients, c)
		case msg := <-s.commands:
			changed = s.handle(msg)
		case now := <-ticker.C:
			changed = s.session.Tick(now)
		case <-s.changes:
			changed = s.reloadSequence()
		}
		if !changed && target == nil {
			continue
		}
		up, err := s.update()
		if err != nil {
			s.logger.Error("serve: encoding frame", "err", err)
			continue
		}
		if changed {
			s.broadcast(up)
		} else {
			s.send(target, up)
		}
	}
}

func (s *server) handle(msg viewer.Message) bool {
	err := s.session.Handle(msg)
	switch {
	case errors.Is(err, viewer.ErrQuit):
		// a browser closes its own tab; the server keeps running
		s.logger.Debug("serve: quit ignored")
		return false
	case err != nil:
		s.logger.Debug("serve: command rejected", "err", err)
		return false
	}
	return true
}

func (s *server) reloadSequence() bool {
	if s.reload == nil {
		return false
	}
	seq, err := s.reload()
	if s.budgetExhausted(err) {
		s.logger.Warn("serve: temp-file budget exhausted, frames with extracted images can't be reloaded until restart",
			"max-temp-files", s.cfg.MaxTempFiles)
	}
	if err != nil {
		s.logger.Warn("serve: reload failed, keeping the previous frames", "err", err)
		return false
	}
	s.session.Replace(seq)
	s.logger.Info("serve: reloaded", "frames", seq.Len())
	return true
}

// budgetExhausted reports whether extraction can no longer create files.
// Temp files are released only at exit, so each reload consumes budget.
func (s *server) budgetExhausted(err error) bool {
	return errors.Is(err, tempfile.ErrLimit) || s.temps != nil && s.temps.Remaining() == 0
}

func (s *server) update() (frameUpdate, error) {
	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, s.session.Render()); err != nil {
		return frameUpdate{}, err
	}
	status, err := json.Marshal(s.session.Status())
	if err != nil {
		return frameUpdate{}, err
	}
	return frameUpdate{png: buf.Bytes(), status: status}, nil
}

func (s *server) broadcast(up frameUpdate) {
	for c := range s.clients {
		s.send(c, up)
	}
}

func (s *server) send(c *client, up frameUpdate) {
	if err := c.write(websocket.BinaryMessage, up.png); err != nil {
		s.logger.Debug("serve: write failed", "err", err)
		return
	}
	if err := c.write(websocket.TextMessage, up.status); err != nil {
		s.logger.Debug("serve: write failed", "err", err)
	}
}
