package ragsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSyncInterval matches the original scheduler cadence.
const DefaultSyncInterval = 15 * time.Minute

// Scheduler runs full sync passes on a fixed interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewScheduler creates a scheduler for the sync service. A zero or
// negative interval falls back to the default.
func NewScheduler(service *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger.With("component", "ragsync-scheduler"),
	}
}

// Start begins the periodic sync. The context bounds each pass, not
// the scheduler itself; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.service.SyncAll(ctx); err != nil {
			s.logger.Error("scheduled sync failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("sync scheduler started", "interval", s.interval.String())
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("sync scheduler stopped")
}
