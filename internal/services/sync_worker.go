package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/usecase/task"
)

// Syncer pushes pending work and pulls the remote snapshot.
type Syncer interface {
	PromotePending(ctx context.Context) (*task.PromoteReport, error)
	Sync(ctx context.Context) (*task.SyncReport, error)
}

// SyncWorker periodically promotes pending tasks and reconciles the cache
// while the remote store is reachable.
type SyncWorker struct {
	tasks   Syncer
	monitor ConnectionHealth
	timeout time.Duration
	logger  *zap.Logger
	job     *periodic
}

func NewSyncWorker(tasks Syncer, monitor ConnectionHealth, interval time.Duration, logger *zap.Logger) *SyncWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &SyncWorker{tasks: tasks, monitor: monitor, timeout: interval, logger: logger}
	w.job = newPeriodic("sync_worker", interval, logger, w.tick)
	return w
}

func (w *SyncWorker) Start() {
	if w == nil {
		return
	}
	w.job.start()
}

func (w *SyncWorker) Stop(ctx context.Context) {
	if w == nil {
		return
	}
	w.job.stop(ctx)
}

// Trigger runs a tick now, e.g. when the connection comes back. It does
// nothing if a tick is already running.
func (w *SyncWorker) Trigger() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.job.run(ctx, w.tick)
}

func (w *SyncWorker) tick(ctx context.Context) {
	if w.monitor != nil && !w.monitor.IsOnline() {
		w.logger.Debug("skipping sync (offline)")
		return
	}

	promoted, err := w.tasks.PromotePending(ctx)
	if err != nil {
		w.logger.Error("promotion failed", zap.Error(err))
	} else if promoted.Promoted > 0 || promoted.Left > 0 {
		w.logger.Info("pending tasks promoted",
			zap.Int("promoted", promoted.Promoted),
			zap.Int("left", promoted.Left))
	}

	if _, err := w.tasks.Sync(ctx); err != nil {
		if errors.Is(err, domain.ErrSyncSuperseded) {
			w.logger.Debug("scheduled sync superseded")
			return
		}
		w.logger.Warn("scheduled sync failed", zap.Error(err))
	}
}
