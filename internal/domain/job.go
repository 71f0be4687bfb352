package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job — единица работы, которая передаётся через очередь.
//
// Job создаётся продюсером через NewJob или восстанавливается Loader'ом
// из тела сообщения. По ходу обработки меняются только Attempts,
// ExecutionStartedAt, ExecutionPlannedAt и Parameters.
type Job struct {
	// UUID — уникальный идентификатор job. Не меняется.
	UUID string

	// Name — имя job, по нему ищется JobDefinition.
	Name string

	// Attempts — номер текущей попытки (начиная с 1).
	Attempts int

	// CreatedAt — время создания job. Не меняется.
	CreatedAt time.Time

	// ExecutionPlannedAt — время отложенной доставки (если запланирована).
	ExecutionPlannedAt *time.Time

	// ExecutionStartedAt — время начала текущей попытки.
	ExecutionStartedAt *time.Time

	// Parameters — параметры job.
	Parameters map[string]any

	// Definition — описание типа job (общее для всех jobs этого типа).
	Definition *JobDefinition
}

// NewJob создаёт job для указанного определения.
func NewJob(def *JobDefinition, params map[string]any) *Job {
	if params == nil {
		params = make(map[string]any)
	}

	return &Job{
		UUID:       uuid.New().String(),
		Name:       def.Name,
		Attempts:   1,
		CreatedAt:  time.Now().UTC(),
		Parameters: params,
		Definition: def,
	}
}

// IncrementAttempts увеличивает счётчик попыток.
//
// Если у определения задан MaxAttempts и следующая попытка его превышает,
// возвращает ErrMaximumAttemptsExceeded (unresolvable), Attempts не меняется.
func (j *Job) IncrementAttempts() error {
	next := j.Attempts + 1

	if j.Definition != nil && j.Definition.MaxAttempts > 0 && next > j.Definition.MaxAttempts {
		return &UnresolvableError{
			Job: j,
			Err: fmt.Errorf("%w: job %s (%s) reached %d attempts",
				ErrMaximumAttemptsExceeded, j.Name, j.UUID, j.Definition.MaxAttempts),
		}
	}

	j.Attempts = next
	return nil
}

// MarkExecutionStarted фиксирует начало попытки.
func (j *Job) MarkExecutionStarted(at time.Time) {
	j.ExecutionStartedAt = &at
}

// PlanExecution фиксирует время отложенной доставки.
func (j *Job) PlanExecution(at time.Time) {
	at = at.UTC()
	j.ExecutionPlannedAt = &at
}

// QueueName возвращает очередь job из определения.
func (j *Job) QueueName() string {
	if j.Definition == nil {
		return ""
	}
	return j.Definition.QueueName
}

// Parameter возвращает параметр по ключу.
// Отсутствующий параметр — ошибка валидации, а не nil.
func (j *Job) Parameter(key string) (any, error) {
	val, ok := j.Parameters[key]
	if !ok {
		return nil, &UnresolvableError{
			Job: j,
			Err: fmt.Errorf("%w: job %s has no parameter %q", ErrJobValidation, j.Name, key),
		}
	}
	return val, nil
}

// StringParameter возвращает строковый параметр.
func (j *Job) StringParameter(key string) (string, error) {
	val, err := j.Parameter(key)
	if err != nil {
		return "", err
	}

	s, ok := val.(string)
	if !ok {
		return "", &UnresolvableError{
			Job: j,
			Err: fmt.Errorf("%w: parameter %q is %T, not string", ErrJobValidation, key, val),
		}
	}
	return s, nil
}

// IntParameter возвращает целочисленный параметр.
// После JSON числа приходят как float64, поэтому оба варианта допустимы.
func (j *Job) IntParameter(key string) (int, error) {
	val, err := j.Parameter(key)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), nil
		}
	}

	return 0, &UnresolvableError{
		Job: j,
		Err: fmt.Errorf("%w: parameter %q is not an integer", ErrJobValidation, key),
	}
}

// SetParameter устанавливает параметр.
func (j *Job) SetParameter(key string, val any) {
	if j.Parameters == nil {
		j.Parameters = make(map[string]any)
	}
	j.Parameters[key] = val
}

// Encode сериализует job в JSON-конверт для отправки в очередь.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// MarshalJSON реализует json.Marshaler через Envelope.
func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(EnvelopeOf(j))
}
