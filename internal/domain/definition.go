package domain

import (
	"context"
	"fmt"
	"strings"
)

// Processor — обработчик job.
//
// Любая неклассифицированная ошибка считается повторяемой.
// Чтобы отказаться от повторов, верните Unresolvable(job, err).
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// ProcessorFunc — функция-адаптер для Processor.
type ProcessorFunc func(ctx context.Context, job *Job) error

// Process реализует Processor.
func (f ProcessorFunc) Process(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// FailResolveStrategy вычисляет задержку и целевую очередь для следующей попытки.
// Реализации — в пакете delay.
type FailResolveStrategy interface {
	// DelayMilliseconds возвращает задержку в миллисекундах (>= 0).
	DelayMilliseconds(job *Job, cause error) (int64, error)

	// TargetQueue возвращает очередь для следующей попытки.
	TargetQueue(job *Job, cause error) string
}

// JobDefinition — статическое описание типа job.
// Неизменяемо после регистрации и разделяется всеми jobs этого типа.
type JobDefinition struct {
	// Name — уникальное имя job.
	Name string

	// QueueName — очередь по умолчанию.
	QueueName string

	// MaxAttempts — максимальное число попыток. 0 — без ограничения.
	MaxAttempts int

	// Loader — фабрика job из конверта. nil — DefaultLoader.
	Loader Loader

	// Strategy — политика повторов. nil — немедленный повтор в ту же очередь.
	Strategy FailResolveStrategy

	// Processor — обработчик job.
	Processor Processor
}

// Validate проверяет определение.
func (d *JobDefinition) Validate() error {
	var problems []string

	if strings.TrimSpace(d.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if strings.TrimSpace(d.QueueName) == "" {
		problems = append(problems, "queue name is empty")
	}
	if d.MaxAttempts < 0 {
		problems = append(problems, "max attempts must be >= 0")
	}
	if d.Processor == nil {
		problems = append(problems, "processor is nil")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, d.Name, strings.Join(problems, ", "))
	}
	return nil
}

// loader возвращает Loader определения или DefaultLoader.
func (d *JobDefinition) loader() Loader {
	if d.Loader == nil {
		return DefaultLoader
	}
	return d.Loader
}
