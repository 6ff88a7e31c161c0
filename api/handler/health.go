package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/api/transport"
	"github.com/fastygo/taskwarlock/internal/cache"
	"github.com/fastygo/taskwarlock/internal/infrastructure/monitor"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
)

// StatusReporter is satisfied by the monitor.
type StatusReporter interface {
	GetStatus() monitor.Status
}

// CacheReporter describes the cached collections and pending mutations.
type CacheReporter interface {
	CacheStates() []cache.State
	Pending() int
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
	caches  CacheReporter
}

func NewHealthHandler(mon StatusReporter, caches CacheReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		caches:      caches,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"taskwarrior": map[string]interface{}{
				"online":  status.Taskwarrior,
				"version": status.Version,
				"breaker": status.Breaker,
			},
			"journal": map[string]interface{}{
				"online": status.Journal,
				"size":   status.JournalSize,
			},
		},
		"last_check": status.LastCheck,
	}
	if h.caches != nil {
		payload["caches"] = h.caches.CacheStates()
		payload["pending_mutations"] = h.caches.Pending()
	}

	if status.Taskwarrior {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError(transport.CodeDegraded, "taskwarrior unreachable", payload))
}
