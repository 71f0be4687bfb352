package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Result — итог попытки доставки для Store.Dispatch.
type Result struct {
	// Done — сообщение доставлено или отброшено, строка удаляется.
	Done bool

	// RetryAt — следующее время доставки, если Done == false.
	// Store увеличивает DeliveryAttempts.
	RetryAt time.Time
}

// Store — хранилище отложенных сообщений.
type Store interface {
	// Dispatch выбирает до limit сообщений с deliver_at <= now, передаёт их в fn
	// и применяет Result. Возвращает число выбранных сообщений.
	Dispatch(ctx context.Context, now time.Time, limit int, fn func(ScheduledMessage) Result) (int, error)
}

// Locker — выбор лидера среди экземпляров диспетчера.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Deliverer отправляет сериализованный job в очередь без задержки.
// Реализуется mq.Manager и sqs.Manager.
type Deliverer interface {
	Deliver(ctx context.Context, queue string, body []byte) error
}

// Default dispatcher parameters.
const (
	DefaultBatchSize           = 100
	DefaultInterval            = time.Second
	DefaultMaxDeliveryAttempts = 10
	DefaultRetryDelay          = 5 * time.Second
	MaxRetryDelay              = 10 * time.Minute
)

// Dispatcher доставляет сообщения, время которых наступило.
//
// Неудачная доставка переносит сообщение на RetryDelay * 2^(n-1),
// где n — номер неудачной попытки. Unresolvable ошибки и исчерпание
// MaxDeliveryAttempts удаляют сообщение.
type Dispatcher struct {
	store       Store
	locker      Locker
	deliverer   Deliverer
	logger      *slog.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Store     Store
	Locker    Locker // опционально; nil — экземпляр всегда лидер
	Deliverer Deliverer
	Logger    *slog.Logger
	BatchSize int           // сообщений за один тик (default: 100)
	Interval  time.Duration // период тиков (default: 1s)

	MaxDeliveryAttempts int           // default: 10
	RetryDelay          time.Duration // первая задержка повтора (default: 5s)

	Clock func() time.Time
}

// NewDispatcher создаёт новый Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:       cfg.Store,
		locker:      cfg.Locker,
		deliverer:   cfg.Deliverer,
		logger:      telemetry.OrDefault(cfg.Logger),
		batchSize:   cfg.BatchSize,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxDeliveryAttempts,
		retryDelay:  cfg.RetryDelay,
		now:         cfg.Clock,
	}

	if d.batchSize <= 0 {
		d.batchSize = DefaultBatchSize
	}
	if d.interval <= 0 {
		d.interval = DefaultInterval
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = DefaultMaxDeliveryAttempts
	}
	if d.retryDelay <= 0 {
		d.retryDelay = DefaultRetryDelay
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Tick доставляет один пакет due сообщений и возвращает число доставленных.
// Ошибка доставки одного сообщения не блокирует остальные.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.now()
	var delivered, retried, dropped int

	_, err := d.store.Dispatch(ctx, now, d.batchSize, func(m ScheduledMessage) Result {
		err := d.deliverer.Deliver(ctx, m.DestinationQueueName, []byte(m.Data))
		if err == nil {
			delivered++
			return Result{Done: true}
		}

		attempt := m.DeliveryAttempts + 1
		attrs := []any{
			"event_id", m.EventID,
			"job_uuid", m.JobID,
			"queue", m.DestinationQueueName,
			"delivery_attempts", attempt,
		}
		attrs = append(attrs, telemetry.ErrorAttrs(err)...)

		if domain.Classify(nil, err).Kind == domain.OutcomeUnresolvable || attempt >= d.maxAttempts {
			dropped++
			d.logger.Error("scheduled message dropped", attrs...)
			return Result{Done: true}
		}

		retried++
		retryAt := now.Add(d.backoff(attempt))
		d.logger.Warn("scheduled message delivery failed", append(attrs, "retry_at", retryAt)...)
		return Result{RetryAt: retryAt}
	})
	if err != nil {
		return delivered, fmt.Errorf("dispatch: %w", err)
	}

	if delivered > 0 || retried > 0 || dropped > 0 {
		d.logger.Info("dispatcher tick completed",
			"delivered", delivered,
			"retried", retried,
			"dropped", dropped,
		)
	}

	return delivered, nil
}

// backoff — задержка после attempt-й неудачной доставки.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return min(delay, MaxRetryDelay)
}

// Run выполняет тики, пока ctx не отменён. Тики выполняет только лидер.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	var leader bool
	defer func() {
		if leader && d.locker != nil {
			if err := d.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				d.logger.Warn("failed to release leadership", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !leader {
			ok, err := d.acquire(ctx)
			if err != nil {
				d.logger.Warn("leader lock failed", "error", err)
				continue
			}
			if !ok {
				continue
			}
			leader = true
			d.logger.Info("became dispatcher leader")
		}

		if _, err := d.Tick(ctx); err != nil {
			d.logger.Error("dispatcher tick failed", "error", err)
		}
	}
}

func (d *Dispatcher) acquire(ctx context.Context) (bool, error) {
	if d.locker == nil {
		return true, nil
	}
	return d.locker.TryLock(ctx)
}
