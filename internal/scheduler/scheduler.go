package scheduler

import (
	"context"
	"time"

	"ecommerce-etl/internal/util"

	"go.uber.org/zap"
)

// Job is the work performed once per scheduled cycle
type Job func(ctx context.Context) error

// Scheduler runs a job once a day at a fixed time of day under a run lock
type Scheduler struct {
	at     time.Duration
	lock   Lock
	job    Job
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler firing at the given offset from local midnight
func New(at time.Duration, lock Lock, job Job, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Scheduler{
		at:     at,
		lock:   lock,
		job:    job,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// NextRun returns the first instant strictly after now at the given time of day
func NextRun(now time.Time, at time.Duration) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(at)
	if !next.After(now) {
		next = time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(at)
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunOnce executes the job if the lock can be taken. A held lock skips the
// cycle and returns ErrLockHeld.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		util.PipelineRunsSkippedTotal.Inc()
		s.logger.Warn("Pipeline already running, skipping execution")
		return ErrLockHeld
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to release run lock", zap.Error(err))
		}
	}()

	s.logger.Info("Starting scheduled pipeline run")
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled pipeline run failed", zap.Error(err))
		return err
	}
	s.logger.Info("Scheduled pipeline run completed")
	return nil
}

// Start blocks, running the job at each scheduled time until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Scheduler started", zap.Duration("time_of_day", s.at))
	for {
		next := NextRun(s.now(), s.at)
		s.logger.Info("Next pipeline run scheduled", zap.Time("at", next))
		if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
			s.logger.Info("Scheduler stopped")
			return err
		}
		// failures are logged by RunOnce and never stop the schedule
		_ = s.RunOnce(ctx)
	}
}
