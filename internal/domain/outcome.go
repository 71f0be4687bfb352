package domain

import (
	"errors"
	"log/slog"
	"time"
)

// OutcomeKind — результат выполнения job.
//
//	Success          → ack
//	Retryable        → повтор с задержкой через FailResolver, затем ack
//	Unresolvable     → drop (nack без requeue / delete)
//	TransportFailure → requeue средствами брокера, ошибка пробрасывается выше
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeUnresolvable
	OutcomeTransportFailure
)

// String возвращает строковое представление OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeUnresolvable:
		return "unresolvable"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome — результат попытки выполнения.
type Outcome struct {
	Kind OutcomeKind

	// Err — классифицированная ошибка (nil для Success).
	Err error

	// DelayHint — задержка, предложенная обработчиком (только для Retryable).
	DelayHint time.Duration
}

// Succeeded возвращает успешный результат.
func Succeeded() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Classify превращает ошибку в Outcome.
//
// Уже классифицированные ошибки (ConsumerFailedError, UnresolvableError,
// DelayableError) сохраняют свой тип. Любая другая ошибка заворачивается
// в DelayableError для указанного job.
func Classify(job *Job, err error) Outcome {
	if err == nil {
		return Succeeded()
	}

	var consumerErr *ConsumerFailedError
	if errors.As(err, &consumerErr) {
		return Outcome{Kind: OutcomeTransportFailure, Err: err}
	}

	var unresolvable *UnresolvableError
	if errors.As(err, &unresolvable) {
		if unresolvable.Job == nil {
			unresolvable.Job = job
		}
		return Outcome{Kind: OutcomeUnresolvable, Err: err}
	}

	var delayable *DelayableError
	if errors.As(err, &delayable) {
		if delayable.Job == nil {
			delayable.Job = job
		}
		return Outcome{Kind: OutcomeRetryable, Err: err, DelayHint: delayable.Hint}
	}

	return Outcome{
		Kind: OutcomeRetryable,
		Err:  &DelayableError{Job: job, Err: err},
	}
}

// LogLevel возвращает уровень логирования для результата.
func (o Outcome) LogLevel() slog.Level {
	var level slog.Level
	switch o.Kind {
	case OutcomeSuccess:
		return slog.LevelInfo
	case OutcomeRetryable, OutcomeUnresolvable:
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}

	if level == slog.LevelError && IsWarningOnly(o.Err) {
		return slog.LevelWarn
	}
	return level
}
