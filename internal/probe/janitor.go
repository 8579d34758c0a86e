package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/metrics"
)

// Janitor periodically removes workspaces abandoned by crashed processes.
// A live invocation removes its own workspace, so only entries older than
// maxAge are touched.
type Janitor struct {
	scratchDir string
	schedule   string
	maxAge     time.Duration
	cron       *cron.Cron
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
	now        func() time.Time
	mu         sync.Mutex
	running    bool
}

// NewJanitor creates a janitor for scratchDir. schedule is a standard cron
// expression or descriptor such as "@every 10m".
func NewJanitor(scratchDir, schedule string, maxAge time.Duration, logger *logging.Logger) *Janitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Janitor{
		scratchDir: scratchDir,
		schedule:   schedule,
		maxAge:     maxAge,
		cron:       cron.New(),
		logger:     logger.WithComponent("janitor"),
		metrics:    metrics.GetGlobalMetrics(),
		now:        time.Now,
	}
}

// Start schedules the sweep and runs one immediately.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("janitor is already running")
	}

	if _, err := j.cron.AddFunc(j.schedule, func() { _, _ = j.Sweep() }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}

	_, _ = j.Sweep()
	j.cron.Start()
	j.running = true

	j.logger.Info("Janitor started", "scratch_dir", j.scratchDir, "schedule", j.schedule, "max_age", j.maxAge)
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}

	<-j.cron.Stop().Done()
	j.running = false

	j.logger.Info("Janitor stopped")
}

// Sweep removes stale workspaces and returns how many were removed. A
// missing scratch directory is not an error.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.scratchDir)
	if os.IsNotExist(err) {
		j.metrics.IncrementJanitorSweeps("success")
		return 0, nil
	}
	if err != nil {
		j.metrics.IncrementJanitorSweeps("error")
		j.logger.Error("Failed to list scratch directory", "dir", j.scratchDir, "error", err)
		return 0, err
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	var firstErr error

	for _, entry := range entries {
		if !entry.IsDir() || !isWorkspaceName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed concurrently by its own invocation
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(j.scratchDir, entry.Name())
		if err := removeAll(dir); err != nil {
			j.logger.Warn("Failed to remove stale workspace", "dir", dir, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
		j.logger.Debug("Removed stale workspace", "dir", dir, "age", j.now().Sub(info.ModTime()))
	}

	j.metrics.AddJanitorRemoved(removed)
	if firstErr != nil {
		j.metrics.IncrementJanitorSweeps("error")
		return removed, firstErr
	}

	j.metrics.IncrementJanitorSweeps("success")
	if removed > 0 {
		j.logger.Info("Removed stale workspaces", "count", removed)
	}
	return removed, nil
}
