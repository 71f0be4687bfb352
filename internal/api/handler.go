package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
)

// DefaultMaxBody — лимит тела запроса по умолчанию.
const DefaultMaxBody = 1 << 20

// HealthCheck — именованная проверка зависимости.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	scheduler scheduler.Scheduler
	checks    []HealthCheck
	metrics   http.Handler
	maxBody   int64
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Scheduler сохраняет принятые сообщения (обычно scheduler.PostgresStore).
	Scheduler scheduler.Scheduler

	Checks []HealthCheck

	// Metrics — опционально, обработчик /metrics.
	Metrics http.Handler

	MaxBody int64
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	return &Handler{
		scheduler: cfg.Scheduler,
		checks:    cfg.Checks,
		metrics:   cfg.Metrics,
		maxBody:   maxBody,
		logger:    telemetry.OrDefault(cfg.Logger),
	}
}
