// Package scheduler runs periodic cache maintenance: purging expired
// in-memory entries and re-warming configured locations.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// Purger removes expired entries and reports how many were dropped.
type Purger interface {
	Purge() int
}

// Warmer prefetches data for a fixed set of places.
type Warmer interface {
	Warm(ctx context.Context, places []models.Place) error
}

// Config selects which jobs run. A zero interval disables the job.
type Config struct {
	PurgeInterval time.Duration
	WarmInterval  time.Duration
	WarmTimeout   time.Duration
	WarmLocations []models.Place
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	cron   *gocron.Scheduler
	purger Purger
	warmer Warmer
	cfg    Config
	logger *zap.Logger
}

// New builds a Scheduler. purger or warmer may be nil, which skips the job.
func New(purger Purger, warmer Warmer, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = 30 * time.Second
	}
	s := &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		purger: purger,
		warmer: warmer,
		cfg:    cfg,
		logger: logger,
	}
	s.cron.SingletonModeAll()

	if purger != nil && cfg.PurgeInterval > 0 {
		if _, err := s.cron.Every(cfg.PurgeInterval).WaitForSchedule().Tag("purge").Do(s.purge); err != nil {
			return nil, fmt.Errorf("schedule purge: %w", err)
		}
	}
	if warmer != nil && cfg.WarmInterval > 0 && len(cfg.WarmLocations) > 0 {
		// First run fires immediately so the cache is warm before traffic arrives.
		if _, err := s.cron.Every(cfg.WarmInterval).Tag("warm").Do(s.warm); err != nil {
			return nil, fmt.Errorf("schedule warm: %w", err)
		}
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info("scheduler started", zap.Int("jobs", s.cron.Len()))
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Jobs returns the tags of scheduled jobs.
func (s *Scheduler) Jobs() []string {
	var tags []string
	for _, j := range s.cron.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}

func (s *Scheduler) purge() {
	n := s.purger.Purge()
	observability.CachePurgedTotal.Add(float64(n))
	if n > 0 {
		s.logger.Debug("purged expired cache entries", zap.Int("count", n))
	}
}

func (s *Scheduler) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WarmTimeout)
	defer cancel()
	if err := s.warmer.Warm(ctx, s.cfg.WarmLocations); err != nil {
		s.logger.Warn("cache warming failed", zap.Error(err))
	}
}
