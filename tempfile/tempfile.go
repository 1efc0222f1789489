// Package tempfile tracks the temporary files created while loading
// documents, and removes them at teardown.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrLimit is returned when creating a file would exceed the registry budget.
var ErrLimit = errors.New("temporary file limit reached")

// Registry is an append-only list of generated paths.
// Entries are only removed by Cleanup.
type Registry struct {
	dir    string
	max    int
	logger *slog.Logger

	mu    sync.Mutex
	paths []string
}

// New returns a registry creating files in dir (os.TempDir() if empty),
// allowing at most max files. A nil logger means slog.Default().
func New(dir string, max int, logger *slog.Logger) *Registry {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{dir: dir, max: max, logger: logger}
}

// Register appends path. Duplicates are allowed; cleanup ignores
// already removed files.
func (r *Registry) Register(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

// Remaining returns how many more files Create accepts.
func (r *Registry) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.max - len(r.paths); n > 0 {
		return n
	}
	return 0
}

// Paths returns a copy of the registered paths, in registration order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Create makes a new, uniquely named file with the given suffix
// and registers it before returning, so that a failed write never leaves
// an untracked file behind.
func (r *Registry) Create(suffix string) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) >= r.max {
		return nil, ErrLimit
	}
	path := filepath.Join(r.dir, "svgplay-"+uuid.NewString()+suffix)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("tempfile: %w", err)
	}
	r.paths = append(r.paths, path)
	return f, nil
}

// WriteFile creates a registered file holding data and returns its path.
func (r *Registry) WriteFile(suffix string, data []byte) (string, error) {
	f, err := r.Create(suffix)
	if err != nil {
		return "", err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return f.Name(), fmt.Errorf("tempfile: %w", err)
	}
	if err = f.Close(); err != nil {
		return f.Name(), fmt.Errorf("tempfile: %w", err)
	}
	return f.Name(), nil
}

// Cleanup deletes every registered file and empties the registry.
// Removal failures are logged and do not stop the cleanup.
// It is safe to call Cleanup several times.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()

	for _, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			r.logger.Debug("tempfile: removed", "path", path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			r.logger.Warn("tempfile: remove failed", "path", path, "err", err)
		}
	}
}
