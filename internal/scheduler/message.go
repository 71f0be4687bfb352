package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
)

// Ошибки пакета scheduler.
var (
	// ErrInvalidMessage — сообщение не заполнено.
	ErrInvalidMessage = errors.New("invalid scheduled message")

	// ErrScheduleRejected — планировщик отклонил сообщение.
	ErrScheduleRejected = errors.New("scheduler rejected message")
)

// ScheduledMessage — сообщение для отложенной доставки внешним планировщиком.
type ScheduledMessage struct {
	// EventID — идентификатор события (UUIDv4), генерируется отправителем.
	EventID string `json:"eventId"`

	JobID                string    `json:"jobId"`
	BrandID              string    `json:"brandId"`
	DestinationQueueName string    `json:"destinationQueueName"`
	DeliveryScheduledAt  time.Time `json:"deliveryScheduledAt"`

	// RemainingRetries — оставшиеся попытки job, -1 — без ограничения.
	RemainingRetries int `json:"remainingRetries"`

	// Data — сериализованный job.
	Data string `json:"data"`

	// DeliveryAttempts — неудачные попытки доставки в очередь.
	// Ведётся Store, в контракт планировщика не входит.
	DeliveryAttempts int `json:"-"`
}

// Scheduler — внешний планировщик отложенной доставки.
type Scheduler interface {
	ScheduleMessage(ctx context.Context, msg ScheduledMessage) error
}

// NewScheduledMessage собирает сообщение для job.
// Время доставки округляется до секунды вниз (RFC3339 без дробной части).
func NewScheduledMessage(job *domain.Job, queue, brandID string, at time.Time) (ScheduledMessage, error) {
	body, err := job.Encode()
	if err != nil {
		return ScheduledMessage{}, fmt.Errorf("encode job: %w", err)
	}

	return ScheduledMessage{
		EventID:              uuid.NewString(),
		JobID:                job.UUID,
		BrandID:              brandID,
		DestinationQueueName: queue,
		DeliveryScheduledAt:  at.UTC().Truncate(time.Second),
		RemainingRetries:     RemainingRetries(job),
		Data:                 string(body),
	}, nil
}

// RemainingRetries возвращает число оставшихся попыток job.
func RemainingRetries(job *domain.Job) int {
	if job.Definition == nil || job.Definition.MaxAttempts <= 0 {
		return -1
	}
	return max(job.Definition.MaxAttempts-job.Attempts, 0)
}

// Validate проверяет обязательные поля.
func (m ScheduledMessage) Validate() error {
	var missing []string

	if _, err := uuid.Parse(m.EventID); err != nil {
		missing = append(missing, "eventId")
	}
	if strings.TrimSpace(m.DestinationQueueName) == "" {
		missing = append(missing, "destinationQueueName")
	}
	if m.DeliveryScheduledAt.IsZero() {
		missing = append(missing, "deliveryScheduledAt")
	}
	if m.Data == "" {
		missing = append(missing, "data")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(missing, ", "))
	}
	return nil
}
