package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskcache/api/transport"
	"github.com/fastygo/taskcache/pkg/httpcontext"
	"github.com/fastygo/taskcache/usecase/directory"
)

type UserHandler struct {
	baseHandler
	directory *directory.Service
}

func NewUserHandler(dir *directory.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		baseHandler: newBaseHandler(adapter, logger),
		directory:   dir,
	}
}

// ListUsers never fails; meta.source tells whether the list is live.
//
// @Summary List assignable users
// @Tags users
// @Router /api/v1/users [get]
func (h *UserHandler) ListUsers(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	users, source := h.directory.ListUsers(stdCtx)
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(users, transport.Meta{Source: string(source)}))
}
