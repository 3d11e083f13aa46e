package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
)

// lockFile guards sweeps across processes sharing a root
const lockFile = ".sweep.lock"

var activeSandboxes atomic.Int64

// Active returns the number of sandboxes acquired and not yet released by this process
func Active() int64 {
	return activeSandboxes.Load()
}

// SweepResult summarizes a sweep
type SweepResult struct {
	Removed []string
	Failed  []string
	Skipped bool // another process held the sweep lock
}

// Sweeper removes sandboxes leaked by crashed or killed processes
type Sweeper struct {
	root   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a sweeper for the manager's root
func NewSweeper(m *Manager) *Sweeper {
	return &Sweeper{
		root:   m.root,
		lock:   flock.New(filepath.Join(m.root, lockFile)),
		logger: m.logger,
		now:    time.Now,
	}
}

// Sweep removes sandbox directories whose modification time is older than maxAge.
// It returns immediately with Skipped set if another process is sweeping.
func (s *Sweeper) Sweep(maxAge time.Duration) (*SweepResult, error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to try lock on %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return &SweepResult{Skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release sweep lock", "error", err)
		}
	}()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading sandbox root: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	result := &SweepResult{}
	for _, entry := range entries {
		// Only directories we created; the lock file and strangers are left alone
		if !entry.IsDir() || !isSandboxName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove stale sandbox", "path", path, "error", err)
			result.Failed = append(result.Failed, entry.Name())
			continue
		}
		result.Removed = append(result.Removed, entry.Name())
	}

	if len(result.Removed) > 0 {
		s.logger.Info("swept stale sandboxes", "removed", len(result.Removed), "failed", len(result.Failed))
	}
	return result, nil
}

// isSandboxName matches <kind>_<nanos>_<random>
func isSandboxName(name string) bool {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return false
	}
	nanos := parts[len(parts)-2]
	if nanos == "" {
		return false
	}
	for _, c := range nanos {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(parts[len(parts)-1]) == 12
}
