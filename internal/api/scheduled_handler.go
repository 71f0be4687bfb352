package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ScheduleMessage принимает сообщение для отложенной доставки.
// POST /api/v1/scheduled-messages
func (h *Handler) ScheduleMessage(w http.ResponseWriter, r *http.Request) {
	var msg scheduler.ScheduledMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		HandleDecodeError(w, err)
		return
	}

	if err := msg.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	logger := telemetry.FromContext(r.Context())
	if HandleScheduleError(w, logger, h.scheduler.ScheduleMessage(r.Context(), msg)) {
		return
	}

	logger.Info("scheduled message accepted",
		"event_id", msg.EventID,
		"job_id", msg.JobID,
		"queue", msg.DestinationQueueName,
		"delivery_at", msg.DeliveryScheduledAt,
	)

	Created(w, ScheduleMessageResponse{
		EventID:          msg.EventID,
		DeliveryPlanned:  msg.DeliveryScheduledAt.UTC().Format(time.RFC3339),
		DestinationQueue: msg.DestinationQueueName,
	})
}

// Health выполняет проверки зависимостей.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	for _, c := range h.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(h.checks))
		}

		if err := c.Check(r.Context()); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	JSON(w, status, resp)
}
