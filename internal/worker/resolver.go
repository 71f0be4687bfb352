package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Pusher отправляет job в очередь с задержкой.
// Реализуется менеджерами очередей (mq.Manager, sqs.Manager).
type Pusher interface {
	Push(ctx context.Context, job *domain.Job, delay time.Duration, queue string) error
}

// immediate — стратегия по умолчанию: повтор без задержки в ту же очередь.
type immediate struct{}

func (immediate) DelayMilliseconds(*domain.Job, error) (int64, error) { return 0, nil }
func (immediate) TargetQueue(job *domain.Job, _ error) string      { return job.QueueName() }

// FailResolver отправляет упавший job на повтор.
//
// Порядок: инкремент попыток → расчёт задержки и очереди → Push → лог.
// Если любой шаг после инкремента не удался, Attempts откатывается,
// чтобы счётчик и повторная отправка менялись только вместе.
type FailResolver struct {
	pusher  Pusher
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewFailResolver создаёт новый FailResolver.
func NewFailResolver(pusher Pusher, logger *slog.Logger, metrics *telemetry.Metrics) *FailResolver {
	return &FailResolver{
		pusher:  pusher,
		logger:  telemetry.OrDefault(logger),
		metrics: metrics,
	}
}

// Resolve планирует следующую попытку job.
//
// Возвращает:
//   - UnresolvableError с ErrMaximumAttemptsExceeded, если попытки исчерпаны
//   - ConsumerFailedError с ErrDelayRule-причиной, если стратегия не смогла посчитать задержку
//   - ошибку с ErrRequeueFailed, если Push не удался
func (r *FailResolver) Resolve(ctx context.Context, job *domain.Job, cause error) error {
	previous := job.Attempts

	if err := job.IncrementAttempts(); err != nil {
		return err
	}

	strategy := job.Definition.Strategy
	if strategy == nil {
		strategy = immediate{}
	}

	delayMs, err := r.delayFor(strategy, job, cause)
	if err != nil {
		job.Attempts = previous
		return domain.ConsumerFailed(fmt.Errorf("calculate delay for %s: %w", job.Name, err))
	}

	queue := strategy.TargetQueue(job, cause)
	if queue == "" {
		queue = job.QueueName()
	}

	delay := time.Duration(delayMs) * time.Millisecond
	if err := r.pusher.Push(ctx, job, delay, queue); err != nil {
		job.Attempts = previous
		return fmt.Errorf("%w: job %s to %s: %w", ErrRequeueFailed, job.UUID, queue, err)
	}

	r.metrics.IncRequeue(job.Name, queue)

	attrs := append(telemetry.JobAttrs(job), "target_queue", queue, "delay_ms", delayMs)
	attrs = append(attrs, telemetry.ErrorAttrs(cause)...)
	r.logger.Warn(fmt.Sprintf("Job requeued [delay: %.3fs]", float64(delayMs)/1000), attrs...)

	return nil
}

// delayFor возвращает задержку: подсказку обработчика или значение стратегии.
func (r *FailResolver) delayFor(strategy domain.FailResolveStrategy, job *domain.Job, cause error) (int64, error) {
	var delayable *domain.DelayableError
	if errors.As(cause, &delayable) && delayable.Hint > 0 {
		return delayable.Hint.Milliseconds(), nil
	}

	ms, err := strategy.DelayMilliseconds(job, cause)
	if err != nil {
		return 0, err
	}
	return max(ms, 0), nil
}
