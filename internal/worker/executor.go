package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Executor выполняет job через Processor из его определения.
//
// Executor не принимает решений об ack/nack: он только
// классифицирует результат в domain.Outcome.
// Таймаут на выполнение не накладывается — зависший обработчик
// блокирует воркер.
type Executor struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// ExecutorConfig — конфигурация Executor.
type ExecutorConfig struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics // опционально

	// Clock — источник времени (опционально, для тестов).
	Clock func() time.Time
}

// NewExecutor создаёт новый Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Executor{
		logger:  telemetry.OrDefault(cfg.Logger),
		metrics: cfg.Metrics,
		now:     clock,
	}
}

// Execute выполняет job и возвращает классифицированный результат.
//
//   - ConsumerFailedError и UnresolvableError пробрасываются без изменений
//   - любая другая ошибка (и panic) заворачивается в DelayableError
func (e *Executor) Execute(ctx context.Context, job *domain.Job) domain.Outcome {
	def := job.Definition
	if def == nil || def.Processor == nil {
		return domain.Outcome{
			Kind: domain.OutcomeUnresolvable,
			Err: domain.Unresolvable(job,
				fmt.Errorf("%w: job %s has no processor", domain.ErrInvalidDefinition, job.Name)),
		}
	}

	started := e.now()
	job.MarkExecutionStarted(started)

	err := process(ctx, def.Processor, job)
	elapsed := e.now().Sub(started)

	outcome := domain.Classify(job, err)
	e.metrics.ObserveExecution(job.Name, outcome.Kind.String(), elapsed)

	e.logger.Debug("job executed",
		append(telemetry.JobAttrs(job),
			"outcome", outcome.Kind.String(),
			"elapsed", elapsed,
		)...,
	)

	return outcome
}

// process вызывает обработчик и превращает panic в ошибку.
func process(ctx context.Context, p domain.Processor, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: processor panic: %v", ErrProcessorPanic, r)
		}
	}()

	return p.Process(ctx, job)
}
