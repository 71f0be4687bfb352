package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/worker"
)

// Delivery — доставленное сообщение RabbitMQ. Реализует worker.Message.
type Delivery struct {
	raw amqp.Delivery
}

// Body реализует worker.Message.
func (d *Delivery) Body() []byte { return d.raw.Body }

// MessageID реализует worker.Message.
func (d *Delivery) MessageID() string { return d.raw.MessageId }

// Raw возвращает исходное AMQP сообщение.
func (d *Delivery) Raw() amqp.Delivery { return d.raw }

// Consume потребляет очередь и синхронно передаёт сообщения в handler.
//
// Завершается при отмене ctx (между сообщениями), при ошибке handler
// или когда исчерпан лимит переподключений.
func (m *Manager) Consume(ctx context.Context, queue string, handler worker.MessageHandler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := m.subscribe(ctx, queue)
		if err != nil {
			return err
		}

		m.logger.Info("consumer started", "queue", queue, "prefetch", m.cfg.PrefetchCount)

		err = m.process(ctx, queue, deliveries, handler)
		if !errors.Is(err, ErrDeliveriesClosed) {
			return err
		}

		m.logger.Warn("deliveries channel closed, reconnecting", "queue", queue)
		if err := m.conn.recover(ctx, queue, err); err != nil {
			return err
		}
	}
}

// subscribe объявляет очередь, выставляет prefetch и начинает потребление.
func (m *Manager) subscribe(ctx context.Context, queue string) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := m.conn.Do(ctx, queue, func(ch Channel) error {
		if err := m.topo.ensureQueue(ch, queue); err != nil {
			return err
		}

		if err := ch.Qos(m.cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		d, err := ch.Consume(
			queue,       // queue
			"",          // consumer tag (auto-generated)
			m.cfg.NoAck, // auto-ack
			false,       // exclusive
			false,       // no-local
			false,       // no-wait
			nil,         // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}

		deliveries = d
		return nil
	})

	return deliveries, err
}

// process обрабатывает сообщения из канала доставки.
func (m *Manager) process(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler worker.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}

			disposition, herr := handler.Handle(ctx, queue, &Delivery{raw: raw})

			if err := m.settle(raw, disposition); err != nil {
				m.logger.Error("failed to settle message",
					"queue", queue,
					"message_id", raw.MessageId,
					"disposition", disposition.String(),
					"error", err,
				)
				if herr == nil {
					return domain.ConsumerFailed(fmt.Errorf("settle %s: %w", disposition, err))
				}
			}

			if herr != nil {
				return herr
			}
		}
	}
}

// settle применяет решение к сообщению:
// ack — basic.ack, requeue/retain — basic.reject(requeue), drop — basic.nack(requeue=false).
func (m *Manager) settle(raw amqp.Delivery, d worker.Disposition) error {
	m.metrics.IncDisposition(transportName, d.String())

	if m.cfg.NoAck {
		return nil
	}

	switch d {
	case worker.Ack:
		return raw.Ack(false)
	case worker.Drop:
		return raw.Nack(false, false)
	default:
		return raw.Reject(true)
	}
}
