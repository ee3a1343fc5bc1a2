// Package maintenance runs periodic housekeeping jobs while the server is up.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/starford/shikibuild/internal/cache"
)

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("maintenance: create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// SchedulePrune deletes expired entries from c every interval and returns
// the job id.
func (s *Scheduler) SchedulePrune(interval time.Duration, c *cache.Cache) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.prune, c),
		gocron.WithName("cache-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("maintenance: schedule prune: %w", err)
	}
	s.logger.Info("maintenance: cache prune scheduled",
		slog.String("dir", c.Dir()),
		slog.Duration("interval", interval),
	)
	return job.ID().String(), nil
}

func (s *Scheduler) prune(c *cache.Cache) {
	n, err := c.Prune(context.Background())
	if err != nil {
		s.logger.Warn("maintenance: prune failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("maintenance: pruned", slog.Int("removed", n))
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
