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

// BeforeLoadHook вызывается до декодирования сообщения.
//
// UnresolvableError от hook — сообщение удаляется,
// любая другая ошибка — сообщение возвращается брокеру и воркер останавливается.
type BeforeLoadHook interface {
	BeforeLoad(ctx context.Context, queue string, msg Message) error
}

// BeforeLoadFunc — функция-адаптер для BeforeLoadHook.
type BeforeLoadFunc func(ctx context.Context, queue string, msg Message) error

// BeforeLoad реализует BeforeLoadHook.
func (f BeforeLoadFunc) BeforeLoad(ctx context.Context, queue string, msg Message) error {
	return f(ctx, queue, msg)
}

// BlacklistHook отбрасывает сообщения с job из списка.
type BlacklistHook struct {
	uuids map[string]struct{}
}

// NewBlacklistHook создаёт BlacklistHook для указанных UUID.
func NewBlacklistHook(uuids ...string) *BlacklistHook {
	set := make(map[string]struct{}, len(uuids))
	for _, id := range uuids {
		set[id] = struct{}{}
	}
	return &BlacklistHook{uuids: set}
}

// BeforeLoad реализует BeforeLoadHook.
// Невалидный конверт пропускается: его отклонит JobLoader.
func (h *BlacklistHook) BeforeLoad(_ context.Context, _ string, msg Message) error {
	env, err := domain.DecodeEnvelope(msg.Body())
	if err != nil {
		return nil
	}

	if _, ok := h.uuids[env.JobUUID]; ok {
		return domain.Unresolvable(nil,
			fmt.Errorf("%w: job %s (%s)", domain.ErrJobBlacklisted, env.JobUUID, env.JobName))
	}
	return nil
}

// ExecutionPlanListener получает события вокруг передачи job
// внешнему планировщику отложенной доставки.
type ExecutionPlanListener interface {
	BeforeExecutionPlanned(ctx context.Context, job *domain.Job, at time.Time)
	AfterExecutionPlanned(ctx context.Context, job *domain.Job, at time.Time, err error)
}

// LoggingPlanListener пишет события планирования в лог.
type LoggingPlanListener struct {
	Logger *slog.Logger
}

// BeforeExecutionPlanned реализует ExecutionPlanListener.
func (l LoggingPlanListener) BeforeExecutionPlanned(_ context.Context, job *domain.Job, at time.Time) {
	telemetry.WithJob(l.Logger, job).Debug("planning job execution", "planned_at", at)
}

// AfterExecutionPlanned реализует ExecutionPlanListener.
func (l LoggingPlanListener) AfterExecutionPlanned(_ context.Context, job *domain.Job, at time.Time, err error) {
	logger := telemetry.WithJob(l.Logger, job)
	if err != nil {
		logger.Warn("job execution planning failed", append([]any{"planned_at", at}, telemetry.ErrorAttrs(err)...)...)
		return
	}
	logger.Info("job execution planned", "planned_at", at)
}

// DuplicateChecker проверяет, обрабатывалось ли уже сообщение.
// Реализуется dedup.Deduplicator.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, queue, messageID string) (bool, error)

	// Release снимает маркер сообщения, которое вернётся от брокера.
	Release(ctx context.Context, queue, messageID string) error
}

// Deduplicated оборачивает handler проверкой дубликатов.
//
// Дубликат подтверждается без выполнения. Недоступное хранилище
// дедупликации — сбой транспорта: сообщение возвращается брокеру.
// Если handler вернул сообщение брокеру (Requeue, Retain), маркер
// снимается, и повторная доставка выполняется заново.
func Deduplicated(next MessageHandler, checker DuplicateChecker, metrics *telemetry.Metrics) MessageHandler {
	return HandlerFunc(func(ctx context.Context, queue string, msg Message) (Disposition, error) {
		dup, err := checker.IsDuplicate(ctx, queue, msg.MessageID())
		if err != nil {
			return Requeue, domain.ConsumerFailed(fmt.Errorf("%w: message %s: %w", ErrDeduplication, msg.MessageID(), err))
		}
		if dup {
			metrics.IncDuplicate(queue)
			return Ack, nil
		}

		d, handleErr := next.Handle(ctx, queue, msg)
		if !d.Redelivers() {
			return d, handleErr
		}

		if err := checker.Release(context.WithoutCancel(ctx), queue, msg.MessageID()); err != nil {
			releaseErr := domain.ConsumerFailed(fmt.Errorf("%w: release %s: %w", ErrDeduplication, msg.MessageID(), err))
			return d, errors.Join(handleErr, releaseErr)
		}
		return d, handleErr
	})
}
