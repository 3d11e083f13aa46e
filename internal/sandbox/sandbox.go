// Package sandbox manages disposable working directories for toolchain jobs.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Subdirectories created in every sandbox
const (
	SourceDir   = "src"
	TestDir     = "test"
	ArtifactDir = "out"
)

// Dir is an acquired sandbox directory owned by a single job
type Dir struct {
	ID   string
	Path string

	released atomic.Bool
}

// Join returns a path inside the sandbox
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Path}, elem...)...)
}

// Manager creates and destroys sandboxes under a common root
type Manager struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a manager rooted at root, creating the directory if needed
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	return &Manager{root: abs, logger: logger, now: time.Now}, nil
}

// Root returns the absolute sandbox root
func (m *Manager) Root() string {
	return m.root
}

// newID combines a clock component with a random component so that
// concurrent acquisitions never collide.
func (m *Manager) newID(kind string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", kind, m.now().UnixNano(), random)
}

// Acquire creates a fresh sandbox with the layout the toolchain expects
func (m *Manager) Acquire(kind string) (*Dir, error) {
	id := m.newID(kind)
	path := filepath.Join(m.root, id)

	// Mkdir (not MkdirAll) so an id collision surfaces as an error
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox %s: %w", id, err)
	}

	dir := &Dir{ID: id, Path: path}
	for _, sub := range []string{SourceDir, TestDir, ArtifactDir} {
		if err := os.Mkdir(dir.Join(sub), 0755); err != nil {
			_ = os.RemoveAll(path)
			return nil, fmt.Errorf("creating sandbox layout: %w", err)
		}
	}

	activeSandboxes.Add(1)
	m.logger.Debug("sandbox acquired", "id", id, "path", path)
	return dir, nil
}

// Release removes the sandbox. Removal errors are logged and never returned:
// a leftover directory is reclaimed by the Sweeper, so the job no longer
// counts as active either way.
func (m *Manager) Release(dir *Dir) {
	if dir == nil || !dir.released.CompareAndSwap(false, true) {
		return
	}
	activeSandboxes.Add(-1)
	if err := os.RemoveAll(dir.Path); err != nil {
		m.logger.Warn("sandbox cleanup failed", "id", dir.ID, "path", dir.Path, "error", err)
		return
	}
	m.logger.Debug("sandbox released", "id", dir.ID)
}

// With acquires a sandbox, runs fn in it and releases it on every exit path,
// including panics in fn.
func (m *Manager) With(kind string, fn func(dir *Dir) error) error {
	dir, err := m.Acquire(kind)
	if err != nil {
		return err
	}
	defer m.Release(dir)
	return fn(dir)
}
