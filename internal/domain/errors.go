package domain

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки модели job.
var (
	// ErrUnknownJobDefinition — определение job не зарегистрировано.
	ErrUnknownJobDefinition = errors.New("unknown job definition")

	// ErrMaximumAttemptsExceeded — исчерпаны попытки.
	ErrMaximumAttemptsExceeded = errors.New("maximum attempts exceeded")

	// ErrJobValidation — job не прошёл валидацию (например, нет параметра).
	ErrJobValidation = errors.New("job validation failed")

	// ErrMalformedPayload — тело сообщения не является корректным конвертом.
	ErrMalformedPayload = errors.New("malformed job payload")

	// ErrJobBlacklisted — job с этим UUID запрещено выполнять.
	ErrJobBlacklisted = errors.New("job is blacklisted")

	// ErrInvalidDefinition — некорректное определение job.
	ErrInvalidDefinition = errors.New("invalid job definition")

	// ErrUnableToProcess — обработчик вернул ошибку, job нужно повторить.
	ErrUnableToProcess = errors.New("unable to process loaded job")
)

// UnresolvableError — ошибка, после которой повтор бессмыслен.
// Сообщение удаляется (или уходит в DLQ) и больше не доставляется.
type UnresolvableError struct {
	Job *Job  // может быть nil, если job не удалось загрузить
	Err error // причина
}

// Error реализует интерфейс error.
func (e *UnresolvableError) Error() string {
	return "unresolvable: " + e.Err.Error()
}

// Unwrap возвращает причину.
func (e *UnresolvableError) Unwrap() error {
	return e.Err
}

// Unresolvable помечает ошибку как неисправимую.
func Unresolvable(job *Job, err error) error {
	return &UnresolvableError{Job: job, Err: err}
}

// DelayableError — попытка не удалась, job нужно повторить с задержкой.
type DelayableError struct {
	Job *Job
	Err error

	// Hint — задержка, предложенная обработчиком. 0 — использовать стратегию.
	Hint time.Duration
}

// Error реализует интерфейс error.
func (e *DelayableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnableToProcess, e.Err)
}

// Unwrap возвращает причину.
func (e *DelayableError) Unwrap() []error {
	return []error{ErrUnableToProcess, e.Err}
}

// RetryAfter помечает ошибку как повторяемую с предложенной задержкой.
func RetryAfter(err error, delay time.Duration) error {
	return &DelayableError{Err: err, Hint: delay}
}

// ConsumerFailedError — сбой на уровне транспорта (decode, ack, брокер).
// Сообщение возвращается в очередь средствами брокера, ошибка пробрасывается выше.
type ConsumerFailedError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *ConsumerFailedError) Error() string {
	return "consumer failed: " + e.Err.Error()
}

// Unwrap возвращает причину.
func (e *ConsumerFailedError) Unwrap() error {
	return e.Err
}

// ConsumerFailed помечает ошибку как транспортную.
func ConsumerFailed(err error) error {
	return &ConsumerFailedError{Err: err}
}

// warningOnly понижает уровень логирования ошибки до WARN.
type warningOnly struct {
	err error
}

func (w *warningOnly) Error() string     { return w.err.Error() }
func (w *warningOnly) Unwrap() error     { return w.err }
func (w *warningOnly) WarningOnly() bool { return true }

// WarningOnly помечает ошибку как ожидаемую: в логах она будет WARN, а не ERROR.
// На решение ack/nack/requeue метка не влияет.
func WarningOnly(err error) error {
	if err == nil {
		return nil
	}
	return &warningOnly{err: err}
}

// IsWarningOnly проверяет метку WarningOnly в цепочке ошибок.
func IsWarningOnly(err error) bool {
	var marker interface{ WarningOnly() bool }
	return errors.As(err, &marker) && marker.WarningOnly()
}

// PreviousError возвращает первую вложенную причину ошибки (для логов).
func PreviousError(err error) error {
	switch e := err.(type) {
	case *DelayableError:
		return e.Err
	case interface{ Unwrap() error }:
		return e.Unwrap()
	}
	return nil
}
