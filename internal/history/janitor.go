package history

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs the janitor once an hour.
const DefaultPurgeSchedule = "@every 1h"

// Janitor purges orphaned images on a cron schedule.
type Janitor struct {
	store  *Store
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor schedules store.Purge. Any schedule accepted by the standard cron
// parser works, including descriptors such as "@hourly" or "@every 10m".
func NewJanitor(store *Store, schedule string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}

	j := &Janitor{
		store:  store,
		logger: logger,
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("history: invalid purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce purges immediately.
func (j *Janitor) RunOnce() {
	n, err := j.store.Purge()
	if err != nil {
		j.logger.Warn("history purge failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("purged orphaned history images", "count", n)
	}
}
