package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskcache/api/transport"
	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/pkg/httpcontext"
	appLogger "github.com/fastygo/taskcache/pkg/logger"
	"github.com/fastygo/taskcache/repository"
	taskUC "github.com/fastygo/taskcache/usecase/task"
)

// TaskOptions tune how requests are interpreted.
type TaskOptions struct {
	// DueLocation resolves due dates given as a calendar date and clock.
	DueLocation *time.Location
	// RemoteTimeout bounds requests that wait on the remote store.
	RemoteTimeout time.Duration
}

type TaskHandler struct {
	baseHandler
	uc   *taskUC.UseCase
	opts TaskOptions
}

func NewTaskHandler(uc *taskUC.UseCase, opts TaskOptions, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	if opts.DueLocation == nil {
		opts.DueLocation = time.Local
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 15 * time.Second
	}
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		opts:        opts,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := repository.TaskFilter{
		Status: string(args.Peek("status")),
		Sort:   string(args.Peek("sort")),
		Desc:   strings.EqualFold(string(args.Peek("order")), "desc"),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, taskID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.remoteContext(ctx, h.opts.RemoteTimeout)
	defer cancel()

	draft, err := req.Draft(h.opts.DueLocation)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}

	result, err := h.uc.CreateTask(stdCtx, draft)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusCreated, transport.NewSuccessWithWarnings(result.Task, result.Warnings))
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskPatchRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	patch, err := req.Patch(h.opts.DueLocation)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}

	result, err := h.uc.UpdateTask(stdCtx, taskID(ctx), patch)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccessWithWarnings(result.Task, result.Warnings))
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	id := taskID(ctx)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing task id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, id); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// Sync pushes pending tasks and then pulls the remote snapshot. A failed
// fetch answers 503 and leaves the cache as it was; a superseded one 409.
//
// @Summary Reconcile with the remote store
// @Tags tasks
// @Router /api/v1/sync [post]
func (h *TaskHandler) Sync(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.remoteContext(ctx, h.opts.RemoteTimeout)
	defer cancel()

	promoted, err := h.uc.PromotePending(stdCtx)
	if err != nil {
		appLogger.WithRequestID(stdCtx, h.logger).Warn("promotion before sync failed", zap.Error(err))
	}

	report, err := h.uc.Sync(stdCtx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"sync":      report,
		"promotion": promoted,
	})
}

func taskID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return strings.TrimSpace(id)
}
