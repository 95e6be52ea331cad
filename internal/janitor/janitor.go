// Package janitor applies the retention policies on a schedule: expired job
// history records are deleted and stale scratch files are swept.
package janitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/recapd/recapd/internal/jobstore"
	"github.com/recapd/recapd/internal/storage"
)

// defaultSchedule runs retention hourly.
const defaultSchedule = "@hourly"

// Janitor periodically enforces history and scratch retention.
type Janitor struct {
	history       *jobstore.HistoryStore
	layout        *storage.Layout
	historyMaxAge time.Duration
	tempMaxAge    time.Duration
	schedule      string
	cron          *cron.Cron
	logger        *slog.Logger
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithSchedule overrides the default hourly cron schedule.
func WithSchedule(spec string) Option {
	return func(j *Janitor) { j.schedule = spec }
}

// New creates a Janitor. A non-positive historyMaxAge disables history
// cleanup; a non-positive tempMaxAge disables the scratch sweep.
func New(history *jobstore.HistoryStore, layout *storage.Layout, historyMaxAge, tempMaxAge time.Duration, logger *slog.Logger, opts ...Option) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		history:       history,
		layout:        layout,
		historyMaxAge: historyMaxAge,
		tempMaxAge:    tempMaxAge,
		schedule:      defaultSchedule,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start schedules the retention job and runs it until Stop.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	j.logger.Info("janitor started", slog.String("schedule", j.schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// RunOnce applies both retention policies immediately.
func (j *Janitor) RunOnce() {
	if j.historyMaxAge > 0 && j.history != nil {
		n, err := j.history.CleanupOlderThan(j.historyMaxAge)
		if err != nil {
			j.logger.Warn("history cleanup failed", slog.String("error", err.Error()))
		} else if n > 0 {
			j.logger.Info("history cleanup", slog.Int("removed", n))
		}
	}
	if j.tempMaxAge > 0 {
		n, err := j.SweepTemp()
		if err != nil {
			j.logger.Warn("temp sweep failed", slog.String("error", err.Error()))
		} else if n > 0 {
			j.logger.Info("temp sweep", slog.Int("removed", n))
		}
	}
}

// SweepTemp removes scratch entries older than the temp retention and
// returns how many were removed.
func (j *Janitor) SweepTemp() (int, error) {
	dir := j.layout.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-j.tempMaxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("removing scratch entry",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}
