package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// periodic runs one job on an @every cron schedule. A tick that fires while
// the previous one is still running is skipped.
type periodic struct {
	name     string
	interval time.Duration
	cron     *cron.Cron
	running  atomic.Bool
	logger   *zap.Logger
}

func newPeriodic(name string, interval time.Duration, logger *zap.Logger, job func(ctx context.Context)) *periodic {
	p := &periodic{
		name:     name,
		interval: interval,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
	_, err := p.cron.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		p.run(ctx, job)
	})
	if err != nil {
		logger.Error("invalid schedule", zap.String("job", name), zap.Duration("interval", interval), zap.Error(err))
	}
	return p
}

// run reports false when another run was already in progress.
func (p *periodic) run(ctx context.Context, job func(ctx context.Context)) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("previous run still in progress, skipping", zap.String("job", p.name))
		return false
	}
	defer p.running.Store(false)
	job(ctx)
	return true
}

func (p *periodic) start() {
	p.cron.Start()
	p.logger.Info("scheduler started", zap.String("job", p.name), zap.Duration("interval", p.interval))
}

func (p *periodic) stop(ctx context.Context) {
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("scheduler stopped", zap.String("job", p.name))
}
