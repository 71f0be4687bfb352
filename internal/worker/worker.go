package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Relay/internal/telemetry"
)

// Source — транспорт, из которого воркер получает сообщения.
// Реализуется mq.Manager и sqs.Manager.
type Source interface {
	// Consume блокируется и синхронно передаёт сообщения в handler,
	// пока ctx не отменён или handler не вернул ошибку.
	// Отмена ctx проверяется между сообщениями.
	Consume(ctx context.Context, queue string, handler MessageHandler) error

	// CheckConnection проверяет доступность брокера.
	CheckConnection(ctx context.Context) error
}

// Worker потребляет одну очередь через один Source.
//
// Сообщения обрабатываются строго последовательно в порядке доставки.
// Масштабирование — запуск нескольких процессов.
type Worker struct {
	source  Source
	handler MessageHandler
	queue   string
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// Config — конфигурация Worker.
type Config struct {
	Source  Source
	Handler MessageHandler // обычно *Pipeline, возможно обёрнутый Deduplicated
	Queue   string
	Logger  *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	return &Worker{
		source:  cfg.Source,
		handler: cfg.Handler,
		queue:   cfg.Queue,
		logger:  telemetry.OrDefault(cfg.Logger),
	}
}

// Run потребляет очередь до Stop, отмены ctx или ошибки транспорта.
//
// Остановка прекращает приём новых сообщений: текущее сообщение
// обрабатывается до конца с контекстом без отмены.
func (w *Worker) Run(ctx context.Context) error {
	if w.queue == "" {
		return ErrNoQueue
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	w.logger.Info("starting worker", "queue", w.queue)

	handler := HandlerFunc(func(ctx context.Context, queue string, msg Message) (Disposition, error) {
		return w.handler.Handle(context.WithoutCancel(ctx), queue, msg)
	})

	err := w.source.Consume(ctx, w.queue, handler)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("worker stopped with error", "queue", w.queue, "error", err)
		return err
	}

	w.logger.Info("worker stopped", "queue", w.queue)
	return nil
}

// Stop останавливает Worker. Повторный вызов безопасен.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true

	w.logger.Info("stopping worker...", "queue", w.queue)

	if w.cancel != nil {
		w.cancel()
	}
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}
