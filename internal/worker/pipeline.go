package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Message — полученное транспортом сообщение.
type Message interface {
	// Body возвращает тело сообщения (JSON конверт job).
	Body() []byte

	// MessageID возвращает идентификатор сообщения у брокера.
	MessageID() string
}

// Disposition — решение о судьбе сообщения у транспорта.
type Disposition int

const (
	// Ack — подтвердить (RabbitMQ: basic.ack, SQS: delete).
	Ack Disposition = iota

	// Requeue — вернуть брокеру для повторной доставки
	// (RabbitMQ: basic.reject requeue=true, SQS: оставить до visibility timeout).
	Requeue

	// Drop — удалить без повторной доставки
	// (RabbitMQ: basic.nack requeue=false, SQS: delete).
	Drop

	// Retain — повтор не удалось отправить, сообщение не подтверждается
	// и будет доставлено транспортом ещё раз.
	Retain
)

// String возвращает строковое представление Disposition.
func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Drop:
		return "drop"
	case Retain:
		return "retain"
	default:
		return "unknown"
	}
}

// Redelivers сообщает, вернётся ли сообщение от брокера.
func (d Disposition) Redelivers() bool {
	return d == Requeue || d == Retain
}

// MessageHandler обрабатывает одно сообщение и решает его судьбу.
//
// Ненулевая ошибка означает, что воркер должен остановиться:
// транспорт применяет Disposition и возвращает ошибку из цикла.
type MessageHandler interface {
	Handle(ctx context.Context, queue string, msg Message) (Disposition, error)
}

// HandlerFunc — функция-адаптер для MessageHandler.
type HandlerFunc func(ctx context.Context, queue string, msg Message) (Disposition, error)

// Handle реализует MessageHandler.
func (f HandlerFunc) Handle(ctx context.Context, queue string, msg Message) (Disposition, error) {
	return f(ctx, queue, msg)
}

// Resolver планирует повтор упавшего job.
type Resolver interface {
	Resolve(ctx context.Context, job *domain.Job, cause error) error
}

// Pipeline — общая для всех транспортов машина состояний сообщения:
//
//	RECEIVED → hooks → DECODING → EXECUTING → Disposition
//
// Pipeline — единственное место, где классификация ошибки
// превращается в ack/requeue/drop.
type Pipeline struct {
	loader   *domain.JobLoader
	executor *Executor
	resolver Resolver
	hooks    []BeforeLoadHook
	logger   *slog.Logger
}

// PipelineConfig — конфигурация Pipeline.
type PipelineConfig struct {
	Loader   *domain.JobLoader
	Executor *Executor // опционально; по умолчанию NewExecutor без метрик
	Resolver Resolver

	// Hooks выполняются по порядку до декодирования сообщения.
	Hooks []BeforeLoadHook

	Logger *slog.Logger
}

// NewPipeline создаёт новый Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := telemetry.OrDefault(cfg.Logger)

	executor := cfg.Executor
	if executor == nil {
		executor = NewExecutor(ExecutorConfig{Logger: logger})
	}

	return &Pipeline{
		loader:   cfg.Loader,
		executor: executor,
		resolver: cfg.Resolver,
		hooks:    cfg.Hooks,
		logger:   logger,
	}
}

// Handle реализует MessageHandler.
func (p *Pipeline) Handle(ctx context.Context, queue string, msg Message) (Disposition, error) {
	logger := p.logger.With("queue", queue, "message_id", msg.MessageID())

	for _, hook := range p.hooks {
		if err := hook.BeforeLoad(ctx, queue, msg); err != nil {
			return p.hookFailed(logger, err)
		}
	}

	job, err := p.loader.Load(msg.Body())
	if err != nil {
		return p.loadFailed(logger, err)
	}

	outcome := p.executor.Execute(ctx, job)
	return p.dispose(ctx, logger, job, outcome)
}

// hookFailed: Unresolvable от hook (например, blacklist) — drop,
// любая другая ошибка — сбой транспорта.
func (p *Pipeline) hookFailed(logger *slog.Logger, err error) (Disposition, error) {
	outcome := domain.Classify(nil, err)
	if outcome.Kind == domain.OutcomeUnresolvable {
		logger.Warn("message rejected by hook", telemetry.ErrorAttrs(err)...)
		return Drop, nil
	}

	if outcome.Kind != domain.OutcomeTransportFailure {
		err = domain.ConsumerFailed(fmt.Errorf("before load hook: %w", err))
	}
	logger.Log(context.Background(), levelOf(err), "before load hook failed", telemetry.ErrorAttrs(err)...)
	return Requeue, err
}

// loadFailed: ошибки загрузки не исправятся повторной доставкой,
// кроме ConsumerFailed от пользовательского Loader.
func (p *Pipeline) loadFailed(logger *slog.Logger, err error) (Disposition, error) {
	outcome := domain.Classify(nil, err)
	if outcome.Kind == domain.OutcomeTransportFailure {
		logger.Log(context.Background(), outcome.LogLevel(), "job load failed", telemetry.ErrorAttrs(err)...)
		return Requeue, err
	}

	logger.Warn("unable to load job, message dropped", telemetry.ErrorAttrs(err)...)
	return Drop, nil
}

func (p *Pipeline) dispose(ctx context.Context, logger *slog.Logger, job *domain.Job, outcome domain.Outcome) (Disposition, error) {
	logger = logger.With(telemetry.JobAttrs(job)...)

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		logger.Info("Job processed")
		return Ack, nil

	case domain.OutcomeUnresolvable:
		logger.Log(ctx, outcome.LogLevel(), "Job failed, unresolvable", telemetry.ErrorAttrs(outcome.Err)...)
		return Drop, nil

	case domain.OutcomeTransportFailure:
		logger.Log(ctx, outcome.LogLevel(), "Consumer failed", telemetry.ErrorAttrs(outcome.Err)...)
		return Requeue, outcome.Err
	}

	// Retryable
	if p.resolver == nil {
		logger.Warn("Job failed, no resolver configured", telemetry.ErrorAttrs(outcome.Err)...)
		return Requeue, nil
	}

	err := p.resolver.Resolve(ctx, job, outcome.Err)
	if err == nil {
		return Ack, nil
	}

	resolved := domain.Classify(job, err)
	switch {
	case resolved.Kind == domain.OutcomeUnresolvable:
		logger.Warn("Job failed, attempts exhausted", telemetry.ErrorAttrs(err)...)
		return Drop, nil

	case errors.Is(err, ErrRequeueFailed):
		logger.Error("Job requeue failed", telemetry.ErrorAttrs(err)...)
		return Retain, err

	default:
		logger.Log(ctx, levelOf(err), "Consumer failed", telemetry.ErrorAttrs(err)...)
		return Requeue, err
	}
}

func levelOf(err error) slog.Level {
	if domain.IsWarningOnly(err) {
		return slog.LevelWarn
	}
	return slog.LevelError
}
