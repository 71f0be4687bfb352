package worker

import "errors"

// Ошибки воркера.
var (
	// ErrProcessorPanic — обработчик job завершился panic.
	ErrProcessorPanic = errors.New("processor panic")

	// ErrRequeueFailed — не удалось отправить job на повтор.
	ErrRequeueFailed = errors.New("requeue failed")

	// ErrDeduplication — хранилище дедупликации недоступно.
	ErrDeduplication = errors.New("deduplication check failed")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")

	// ErrNoQueue — воркеру не указана очередь.
	ErrNoQueue = errors.New("worker queue is not set")
)
