// Package fs removes stale download fragments. Cancellation is advisory
// only, so aborted jobs routinely leave partial files in the destination
// directory; the sweeper reclaims them once they stop changing.
package fs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// partialSuffixes are the extensions the engine uses for in-flight data.
var partialSuffixes = []string{".part", ".ytdl", ".part-Frag", ".temp"}

// Sweeper periodically deletes stale partial files under a directory.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a Sweeper for dir. Files with a partial-download suffix
// whose modification time is older than maxAge get removed every interval.
func NewSweeper(dir string, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. It runs once immediately, then on every
// tick until the context ends or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	if s.dir == "" || s.interval <= 0 {
		return
	}

	go func() {
		slog.Info("partial file sweeper started",
			"dir", s.dir,
			"max_age", s.maxAge,
			"interval", s.interval,
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// SweepNow performs one immediate sweep.
func (s *Sweeper) SweepNow() {
	s.sweep()
}

func (s *Sweeper) sweep() {
	threshold := time.Now().Add(-s.maxAge)
	deleted := 0

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isPartial(path) || !info.ModTime().Before(threshold) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to delete partial file", "path", path, "error", err)
			return nil
		}
		deleted++
		return nil
	})
	if err != nil {
		slog.Error("sweep error", "dir", s.dir, "error", err)
	}

	if deleted > 0 {
		slog.Info("partial files reclaimed", "deleted", deleted, "dir", s.dir)
	}
}

func isPartial(path string) bool {
	name := filepath.Base(path)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) || strings.Contains(name, suffix+"-") {
			return true
		}
	}
	return false
}
