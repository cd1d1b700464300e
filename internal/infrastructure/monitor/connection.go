package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskcache/internal/infrastructure/cachestore"
	"github.com/fastygo/taskcache/internal/resilience"
)

// Pinger reports whether the remote store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheInspector summarises the local cache.
type CacheInspector interface {
	Info() (cachestore.Info, error)
}

// Monitor periodically probes the remote store and the local cache and
// fires reconnect hooks when the remote store comes back.
type Monitor struct {
	remote  Pinger
	cache   CacheInspector
	redis   *redislib.Client
	breaker *resilience.Breaker

	status      Status
	mu          sync.RWMutex
	onReconnect []func()
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	logger      *zap.Logger
}

type Option func(*Monitor)

func WithRedis(client *redislib.Client) Option {
	return func(m *Monitor) { m.redis = client }
}

func WithBreaker(b *resilience.Breaker) Option {
	return func(m *Monitor) { m.breaker = b }
}

func New(remote Pinger, cache CacheInspector, interval time.Duration, logger *zap.Logger, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		remote:   remote,
		cache:    cache,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnReconnect registers fn to run (in its own goroutine) each time the remote
// store becomes reachable after being unreachable.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	m.onReconnect = append(m.onReconnect, fn)
	m.mu.Unlock()
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Done is closed once the probe loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Remote
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once and publishes the new status.
func (m *Monitor) Refresh(ctx context.Context) Status {
	now := time.Now()
	remoteErr := m.checkRemote(ctx)
	status := Status{
		Remote:    remoteErr == nil,
		Redis:     m.checkRedis(ctx),
		LastCheck: now,
	}
	if remoteErr != nil {
		status.RemoteErr = remoteErr.Error()
	}
	if m.breaker != nil {
		status.Breaker = m.breaker.State().String()
	}
	if info, ok := m.checkCache(); ok {
		status.Cache = true
		status.Tasks = info.Tasks
		status.Pending = info.Pending
		status.LastSync = info.LastSync
	}

	m.mu.Lock()
	wasOnline := m.status.Remote
	checkedBefore := !m.status.LastCheck.IsZero()
	status.OnlineFrom = m.status.OnlineFrom
	if status.Remote && !wasOnline {
		status.OnlineFrom = now
	}
	if !status.Remote {
		status.OnlineFrom = time.Time{}
	}
	m.status = status
	hooks := append([]func(){}, m.onReconnect...)
	m.mu.Unlock()

	switch {
	case status.Remote && !wasOnline:
		if checkedBefore {
			m.logger.Info("remote store reachable again")
		}
		for _, fn := range hooks {
			go fn()
		}
	case !status.Remote && (wasOnline || !checkedBefore):
		m.logger.Warn("remote store unreachable, working offline", zap.String("error", status.RemoteErr))
	}
	return status
}

func (m *Monitor) checkRemote(ctx context.Context) error {
	if m.remote == nil {
		return errNoRemote
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.remote.Ping(ctx)
}

func (m *Monitor) checkRedis(ctx context.Context) *bool {
	if m.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok := m.redis.Ping(ctx).Err() == nil
	return &ok
}

func (m *Monitor) checkCache() (cachestore.Info, bool) {
	if m.cache == nil {
		return cachestore.Info{}, false
	}
	info, err := m.cache.Info()
	if err != nil {
		m.logger.Warn("cache inspection failed", zap.Error(err))
		return info, false
	}
	return info, true
}
