package api

import (
	"net/http"

	"github.com/shaiso/Relay/internal/scheduler"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		WithRequestID(h.logger),
		Recovery(h.logger),
		Logging(h.logger),
		MaxBody(h.maxBody),
	)

	// Scheduled messages
	if h.scheduler != nil {
		mux.Handle("POST "+scheduler.MessagesPath, chain(http.HandlerFunc(h.ScheduleMessage)))
	}

	// Service
	mux.HandleFunc("GET /healthz", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}
