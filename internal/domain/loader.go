package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Loader создаёт job из конверта для конкретного определения.
type Loader interface {
	Load(env *Envelope, def *JobDefinition) (*Job, error)
}

// LoaderFunc — функция-адаптер для Loader.
type LoaderFunc func(env *Envelope, def *JobDefinition) (*Job, error)

// Load реализует Loader.
func (f LoaderFunc) Load(env *Envelope, def *JobDefinition) (*Job, error) {
	return f(env, def)
}

// DefaultLoader переносит поля конверта в job без проверок.
var DefaultLoader Loader = LoaderFunc(func(env *Envelope, def *JobDefinition) (*Job, error) {
	return env.Job(def), nil
})

// RequireParameters возвращает Loader, отклоняющий конверты без обязательных параметров.
func RequireParameters(keys ...string) Loader {
	return LoaderFunc(func(env *Envelope, def *JobDefinition) (*Job, error) {
		job := env.Job(def)

		var missing []string
		for _, key := range keys {
			if _, ok := job.Parameters[key]; !ok {
				missing = append(missing, key)
			}
		}

		if len(missing) > 0 {
			return nil, &UnresolvableError{
				Job: job,
				Err: fmt.Errorf("%w: job %s is missing parameters: %s",
					ErrJobValidation, def.Name, strings.Join(missing, ", ")),
			}
		}
		return job, nil
	})
}

// JobLoader декодирует тело сообщения в job через реестр определений.
type JobLoader struct {
	definitions *Definitions
}

// NewJobLoader создаёт JobLoader.
func NewJobLoader(definitions *Definitions) *JobLoader {
	return &JobLoader{definitions: definitions}
}

// Definitions возвращает реестр, с которым работает JobLoader.
func (l *JobLoader) Definitions() *Definitions {
	return l.definitions
}

// Load декодирует конверт, находит определение и создаёт job.
//
// Все ошибки загрузки — UnresolvableError: такое сообщение
// не станет корректным при повторной доставке.
func (l *JobLoader) Load(body []byte) (*Job, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	def, err := l.definitions.Get(env.JobName)
	if err != nil {
		return nil, err
	}

	job, err := def.loader().Load(env, def)
	if err != nil {
		return nil, asUnresolvable(err)
	}
	if job == nil {
		return nil, &UnresolvableError{
			Err: fmt.Errorf("%w: loader for %s returned no job", ErrMalformedPayload, def.Name),
		}
	}
	if job.Name != def.Name || job.Definition != def {
		return nil, &UnresolvableError{
			Job: job,
			Err: fmt.Errorf("%w: loader for %s produced job %q", ErrInvalidDefinition, def.Name, job.Name),
		}
	}
	if err := checkAttempts(job, def); err != nil {
		return nil, err
	}

	return job, nil
}

// checkAttempts отклоняет job с попытками вне [1, MaxAttempts].
func checkAttempts(job *Job, def *JobDefinition) error {
	if job.Attempts < 1 {
		return &UnresolvableError{
			Job: job,
			Err: fmt.Errorf("%w: job %s (%s) has attempts %d", ErrMalformedPayload, job.Name, job.UUID, job.Attempts),
		}
	}
	if def.MaxAttempts > 0 && job.Attempts > def.MaxAttempts {
		return &UnresolvableError{
			Job: job,
			Err: fmt.Errorf("%w: job %s (%s) has %d attempts, maximum is %d",
				ErrMaximumAttemptsExceeded, job.Name, job.UUID, job.Attempts, def.MaxAttempts),
		}
	}
	return nil
}

// asUnresolvable приводит ошибку загрузки к UnresolvableError,
// сохраняя уже классифицированные ошибки как есть.
func asUnresolvable(err error) error {
	var unresolvable *UnresolvableError
	var consumerErr *ConsumerFailedError
	if errors.As(err, &unresolvable) || errors.As(err, &consumerErr) {
		return err
	}
	return &UnresolvableError{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
}
