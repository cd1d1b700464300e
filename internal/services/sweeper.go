package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskcache/usecase/task"
)

// Sweeper moves overdue open tasks to Missed.
type Sweeper interface {
	SweepMissed(ctx context.Context, now time.Time) (*task.SweepReport, error)
}

// MissedSweeper drives the lifecycle scheduler on a fixed period.
type MissedSweeper struct {
	tasks  Sweeper
	now    func() time.Time
	logger *zap.Logger
	job    *periodic
}

func NewMissedSweeper(tasks Sweeper, interval time.Duration, logger *zap.Logger) *MissedSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MissedSweeper{tasks: tasks, now: time.Now, logger: logger}
	s.job = newPeriodic("missed_sweeper", interval, logger, func(ctx context.Context) {
		_, _ = s.sweep(ctx)
	})
	return s
}

func (s *MissedSweeper) Start() {
	if s == nil {
		return
	}
	s.job.start()
}

// Stop halts the schedule and waits for a running tick, bounded by ctx.
func (s *MissedSweeper) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	s.job.stop(ctx)
}

// RunOnce runs one tick synchronously. It returns nil, nil if a scheduled
// tick is already running.
func (s *MissedSweeper) RunOnce(ctx context.Context) (*task.SweepReport, error) {
	var (
		report *task.SweepReport
		err    error
	)
	s.job.run(ctx, func(ctx context.Context) {
		report, err = s.sweep(ctx)
	})
	return report, err
}

func (s *MissedSweeper) sweep(ctx context.Context) (*task.SweepReport, error) {
	report, err := s.tasks.SweepMissed(ctx, s.now())
	if err != nil {
		s.logger.Error("missed sweep failed", zap.Error(err))
		return nil, err
	}
	if len(report.Transitioned) > 0 {
		s.logger.Info("missed sweep finished",
			zap.Int("transitioned", len(report.Transitioned)),
			zap.Int("remote_updated", report.Updated),
			zap.Int("remote_failed", report.Failed))
	}
	return report, nil
}
