package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// Push публикует job в очередь.
//
// delay > 0 — публикация через DelayedExchange с заголовком x-delay,
// иначе — напрямую в очередь через default exchange.
// Пустой queue — очередь из определения job.
func (m *Manager) Push(ctx context.Context, job *domain.Job, delay time.Duration, queue string) error {
	if queue == "" {
		queue = job.QueueName()
	}

	body, err := job.Encode()
	if err != nil {
		return domain.Unresolvable(job, fmt.Errorf("encode job: %w", err))
	}

	exchange, err := m.publish(ctx, queue, body, delay, job.UUID)
	if err != nil {
		return err
	}

	m.logger.Debug("published job",
		"queue", queue,
		"exchange", exchange,
		"delay", delay,
		"job_uuid", job.UUID,
		"job_name", job.Name,
		"attempts", job.Attempts,
	)

	return nil
}

// Deliver публикует готовое тело в очередь без задержки.
// Используется диспетчером отложенных сообщений.
func (m *Manager) Deliver(ctx context.Context, queue string, body []byte) error {
	if _, err := m.publish(ctx, queue, body, 0, ""); err != nil {
		return err
	}

	m.logger.Debug("delivered message", "queue", queue, "size", len(body))
	return nil
}

// publish объявляет очередь (и delayed exchange при delay > 0) и публикует тело.
func (m *Manager) publish(ctx context.Context, queue string, body []byte, delay time.Duration, correlationID string) (string, error) {
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Timestamp:     time.Now(),
		Body:          body,
	}

	exchange := ""
	if delay > 0 {
		exchange = DelayedExchange
		msg.Headers = amqp.Table{delayHeader: delay.Milliseconds()}
	}

	err := m.pub.Do(ctx, queue, func(ch Channel) error {
		if err := m.topo.ensureQueue(ch, queue); err != nil {
			return err
		}
		if delay > 0 {
			if err := m.topo.ensureDelayed(ch, queue); err != nil {
				return err
			}
		}

		publishCtx := ctx
		if m.cfg.ReadWriteTimeout > 0 {
			var cancel context.CancelFunc
			publishCtx, cancel = context.WithTimeout(ctx, m.cfg.ReadWriteTimeout)
			defer cancel()
		}

		if err := ch.PublishWithContext(publishCtx, exchange, queue, false, false, msg); err != nil {
			return fmt.Errorf("publish to %s: %w", queue, err)
		}
		return nil
	})
	return exchange, err
}
