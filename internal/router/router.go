package router

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskcache/api/handler"
	"github.com/fastygo/taskcache/pkg/httpcontext"
)

type Handlers struct {
	Task   *apiHandler.TaskHandler
	User   *apiHandler.UserHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, logger *zap.Logger) *router.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := router.New()
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v interface{}) {
		logger.Error("handler panic", zap.ByteString("path", ctx.Path()), zap.Any("panic", v))
		ctx.Error(`{"status":"error","code":"INTERNAL"}`, fasthttp.StatusInternalServerError)
	}

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")
	api.GET("/tasks", handlers.Task.GetTasks)
	api.POST("/tasks", handlers.Task.CreateTask)
	api.GET("/tasks/{id}", handlers.Task.GetTask)
	api.PUT("/tasks/{id}", handlers.Task.UpdateTask)
	api.DELETE("/tasks/{id}", handlers.Task.DeleteTask)
	api.POST("/sync", handlers.Task.Sync)
	api.GET("/users", handlers.User.ListUsers)

	return r
}

// AccessLog wraps a handler with one structured log line per request.
func AccessLog(next fasthttp.RequestHandler, logger *zap.Logger) fasthttp.RequestHandler {
	if logger == nil {
		return next
	}
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		logger.Debug("request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", time.Since(start)),
			zap.ByteString("request_id", ctx.Response.Header.Peek(httpcontext.HeaderRequestID)),
		)
	}
}
