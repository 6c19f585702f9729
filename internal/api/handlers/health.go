package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when DB is set, database connectivity.
type HealthHandler struct {
	responder
	DB Pinger
}

func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{responder: responder{logger: logger}, DB: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]string{"status": "ok"}

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.DB.PingContext(ctx); err != nil {
			h.log().Warn("health check failed", zap.Error(err))
			res["status"] = "error"
			res["database"] = "disconnected"
			h.writeJSON(w, r, http.StatusServiceUnavailable, res)
			return
		}
		res["database"] = "connected"
	}

	h.writeJSON(w, r, http.StatusOK, res)
}
