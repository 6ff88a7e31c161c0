package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/api/transport"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
	contextsUC "github.com/fastygo/taskwarlock/usecase/contexts"
)

type ContextHandler struct {
	baseHandler
	uc *contextsUC.UseCase
}

func NewContextHandler(uc *contextsUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List Taskwarrior contexts
// @Tags contexts
// @Router /api/v1/contexts [get]
func (h *ContextHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	overview, err := h.uc.Overview(stdCtx)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, overview)
}

// @Summary Switch the applied context ("" or "none" clears it)
// @Tags contexts
// @Router /api/v1/contexts/current [put]
func (h *ContextHandler) Switch(ctx *fasthttp.RequestCtx) {
	var req transport.SwitchContextRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	overview, err := h.uc.Switch(stdCtx, req.Name)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, overview)
}
