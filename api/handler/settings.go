package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
	settingsUC "github.com/fastygo/taskwarlock/usecase/settings"
)

type SettingsHandler struct {
	baseHandler
	uc *settingsUC.UseCase
}

func NewSettingsHandler(uc *settingsUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Get settings
// @Tags settings
// @Router /api/v1/settings [get]
func (h *SettingsHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.uc.Get())
}

// @Summary Update settings; urgency coefficients merge field by field
// @Tags settings
// @Router /api/v1/settings [put]
func (h *SettingsHandler) Update(ctx *fasthttp.RequestCtx) {
	var patch domain.SettingsPatch
	if !h.decode(ctx, &patch) {
		return
	}
	view, err := h.uc.Update(patch)
	if err != nil {
		h.respondError(ctx, context.Background(), err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}
