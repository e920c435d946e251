package service

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler refreshes the default space's report on a cron schedule so the
// read endpoints always serve reasonably fresh data.
type Scheduler struct {
	cron     *cron.Cron
	svc      *AuditService
	spaceID  string
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a refresh scheduler. spaceID and schedule must both be
// set; callers skip construction when either is absent.
func NewScheduler(svc *AuditService, spaceID, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		spaceID:  spaceID,
		schedule: schedule,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		run, err := s.svc.RunAudit(ctx, s.spaceID, 0)
		if err != nil {
			s.logger.Warn("scheduled refresh failed", "space_id", s.spaceID, "error", err)
			return
		}
		s.logger.Info("scheduled refresh complete", "space_id", s.spaceID, "run_id", run.ID)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("refresh scheduler started", "space_id", s.spaceID, "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("refresh scheduler stopped")
}
