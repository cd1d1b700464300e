package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskcache/api/handler"
	"github.com/fastygo/taskcache/internal/config"
	"github.com/fastygo/taskcache/internal/infrastructure/cachestore"
	"github.com/fastygo/taskcache/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskcache/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskcache/internal/infrastructure/redis"
	"github.com/fastygo/taskcache/internal/resilience"
	"github.com/fastygo/taskcache/internal/router"
	"github.com/fastygo/taskcache/internal/services"
	"github.com/fastygo/taskcache/internal/services/lifecycle"
	"github.com/fastygo/taskcache/pkg/httpcontext"
	"github.com/fastygo/taskcache/pkg/logger"
	"github.com/fastygo/taskcache/repository"
	"github.com/fastygo/taskcache/repository/httpapi"
	"github.com/fastygo/taskcache/repository/memory"
	"github.com/fastygo/taskcache/repository/postgres"
	redisRepo "github.com/fastygo/taskcache/repository/redis"
	"github.com/fastygo/taskcache/usecase"
	"github.com/fastygo/taskcache/usecase/directory"
	taskUC "github.com/fastygo/taskcache/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.SignalContext(context.Background())
	defer cancel()

	store, err := cachestore.Open(cfg.Cache.Path)
	if err != nil {
		zapLogger.Fatal("failed to open task cache", zap.String("path", cfg.Cache.Path), zap.Error(err))
	}
	manager.Register("cache", func(ctx context.Context) error {
		return store.Close()
	})

	var redisClient *goRedis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	var (
		remote     repository.RemoteGateway
		httpRemote *httpapi.Gateway
	)
	switch cfg.Remote.Driver {
	case config.RemotePostgres:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		var pool *pgxpool.Pool
		pool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres pool setup failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		remote = postgres.NewGateway(pool)
	default:
		httpRemote = httpapi.New(httpapi.Config{
			BaseURL:   cfg.Remote.BaseURL,
			Timeout:   cfg.Remote.Timeout,
			JWTSecret: cfg.Remote.JWTSecret,
			ClientID:  cfg.Remote.ClientID,
		}, zapLogger.Named("remote"))
		remote = httpRemote
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown, zapLogger)
	guarded := resilience.WrapGateway(remote, breaker)

	var usersCache repository.UserCache
	if redisClient != nil {
		usersCache = redisRepo.NewUserCache(redisClient, cfg.AppName+":", cfg.Redis.UsersTTL)
	} else {
		memUsers, err := memory.NewUserCache(cfg.Redis.UsersTTL)
		if err != nil {
			zapLogger.Fatal("users cache setup failed", zap.Error(err))
		}
		manager.RegisterStop("users_cache", func(context.Context) { memUsers.Close() })
		usersCache = memUsers
	}
	dir := directory.New(guarded, usersCache, zapLogger.Named("directory"))

	opts := []taskUC.Option{taskUC.WithFacilities(cfg.Tasks.Facilities)}
	if notifier := newNotifier(cfg, httpRemote, redisClient); notifier != nil {
		opts = append(opts, taskUC.WithNotifier(notifier, dir))
	} else {
		zapLogger.Warn("assignment notifications disabled", zap.String("notify_driver", cfg.Notify.Driver))
	}
	taskUseCase := taskUC.New(store, guarded, zapLogger.Named("tasks"), opts...)
	manager.Register("remote_calls", taskUseCase.Wait)
	go drainWarnings(appCtx, taskUseCase, zapLogger)

	mon := monitor.New(remote, store, cfg.Schedule.MonitorInterval, zapLogger.Named("monitor"),
		monitor.WithRedis(redisClient),
		monitor.WithBreaker(breaker),
	)

	syncWorker := services.NewSyncWorker(taskUseCase, mon, cfg.Schedule.SyncInterval, zapLogger)
	sweeper := services.NewMissedSweeper(taskUseCase, cfg.Schedule.SweepInterval, zapLogger)
	mon.OnReconnect(syncWorker.Trigger)

	mon.Start()
	manager.RegisterStop("monitor", func(context.Context) { mon.Stop() })
	syncWorker.Start()
	manager.RegisterStop("sync_worker", syncWorker.Stop)
	sweeper.Start()
	manager.RegisterStop("missed_sweeper", sweeper.Stop)

	// catch up on anything that went overdue while the daemon was down
	if _, err := sweeper.RunOnce(appCtx); err != nil {
		zapLogger.Warn("startup sweep failed", zap.Error(err))
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Task: apiHandler.NewTaskHandler(taskUseCase, apiHandler.TaskOptions{
			DueLocation:   cfg.Tasks.DueLocation,
			RemoteTimeout: 2 * cfg.Remote.Timeout,
		}, ctxAdapter, zapLogger),
		User:   apiHandler.NewUserHandler(dir, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	r := router.New(handlers, zapLogger)

	server := &fasthttp.Server{
		Handler:      router.AccessLog(r.Handler, zapLogger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("remote_driver", cfg.Remote.Driver),
			zap.String("cache", cfg.Cache.Path))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func newNotifier(cfg *config.Config, remote *httpapi.Gateway, redisClient *goRedis.Client) usecase.Notifier {
	switch cfg.Notify.Driver {
	case config.NotifyRedis:
		if redisClient != nil {
			return redisRepo.NewNotifier(redisClient, cfg.Notify.Channel)
		}
	case config.NotifyRemote:
		if remote != nil {
			return remote
		}
	}
	return nil
}

// drainWarnings empties the background warning channel. Each warning has
// already been logged where it was raised.
func drainWarnings(ctx context.Context, uc *taskUC.UseCase, zapLogger *zap.Logger) {
	var dropped int
	for {
		select {
		case <-ctx.Done():
			if dropped > 0 {
				zapLogger.Info("background remote failures during this run", zap.Int("count", dropped))
			}
			return
		case <-uc.Warnings():
			dropped++
		}
	}
}
