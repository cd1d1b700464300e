package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskcache/api/transport"
	"github.com/fastygo/taskcache/internal/infrastructure/monitor"
	"github.com/fastygo/taskcache/pkg/httpcontext"
)

// StatusSource exposes the last connection probe.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// Check reports the daemon's mode. Being offline is a normal operating mode;
// only a broken local cache makes the daemon unhealthy.
//
// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	mode := "offline"
	if status.Remote {
		mode = "online"
	}
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"mode":      mode,
		"services":  status,
	}

	if status.Cache {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "local cache unavailable", payload))
}
