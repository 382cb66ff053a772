package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
)

// Cleaner removes sent-message records created before cutoff.
type Cleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs retention cleanup on a fixed interval.
type Scheduler struct {
	cleaner       Cleaner
	retentionDays atomic.Int64
	interval      time.Duration
	logger        *logrus.Logger
	now           func() time.Time
	stopCh        chan struct{}
}

func NewScheduler(cleaner Cleaner, retentionDays int, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = constants.DefaultCleanupIntervalHours * time.Hour
	}
	s := &Scheduler{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	s.SetRetentionDays(retentionDays)
	return s
}

// SetRetentionDays changes the retention window used by the next run.
// Non-positive values fall back to the default.
func (s *Scheduler) SetRetentionDays(days int) {
	if days <= 0 {
		days = constants.DefaultRetentionDays
	}
	s.retentionDays.Store(int64(days))
}

func (s *Scheduler) RetentionDays() int {
	return int(s.retentionDays.Load())
}

// Start cleans up once immediately and then on every tick until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("Starting cleanup scheduler")

	s.RunCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.RunCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// RunCleanup deletes records older than the retention window.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	days := s.RetentionDays()
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	deleted, err := s.cleaner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).WithField("retention_days", days).Error("Failed to cleanup old records")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"retention_days":         days,
		constants.LogFieldCount: deleted,
	}).Info("Successfully completed cleanup")
}
