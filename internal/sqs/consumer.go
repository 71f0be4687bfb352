package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/worker"
)

// MessageAttribute — типизированный атрибут сообщения (String, Number, Binary).
type MessageAttribute struct {
	DataType    string
	StringValue string
	BinaryValue []byte
}

// Message — полученное сообщение SQS. Реализует worker.Message.
type Message struct {
	id      string
	receipt string
	body    []byte

	// Attributes — системные атрибуты (ApproximateReceiveCount и т.д.).
	Attributes map[string]string

	MessageAttributes map[string]MessageAttribute
}

// Body реализует worker.Message.
func (m *Message) Body() []byte { return m.body }

// MessageID реализует worker.Message.
func (m *Message) MessageID() string { return m.id }

// ReceiptHandle возвращает токен для удаления сообщения.
func (m *Message) ReceiptHandle() string { return m.receipt }

// Attribute возвращает строковое значение атрибута сообщения.
func (m *Message) Attribute(name string) (string, bool) {
	attr, ok := m.MessageAttributes[name]
	if !ok {
		return "", false
	}
	return attr.StringValue, true
}

func newMessage(raw types.Message) *Message {
	msg := &Message{
		id:                aws.ToString(raw.MessageId),
		receipt:           aws.ToString(raw.ReceiptHandle),
		body:              []byte(aws.ToString(raw.Body)),
		Attributes:        raw.Attributes,
		MessageAttributes: make(map[string]MessageAttribute, len(raw.MessageAttributes)),
	}

	for name, v := range raw.MessageAttributes {
		msg.MessageAttributes[name] = MessageAttribute{
			DataType:    aws.ToString(v.DataType),
			StringValue: aws.ToString(v.StringValue),
			BinaryValue: v.BinaryValue,
		}
	}
	return msg
}

// Consume выполняет long-poll очереди и синхронно передаёт сообщения в handler.
//
// Если настроен Deduplicator, дубликаты подтверждаются до декодирования.
// Завершается при отмене ctx (между сообщениями), при ошибке handler
// или когда исчерпан лимит пересоздания клиента.
func (m *Manager) Consume(ctx context.Context, queue string, handler worker.MessageHandler) error {
	if err := m.cfg.validateConsume(); err != nil {
		return err
	}

	if m.dedup != nil {
		handler = worker.Deduplicated(handler, m.dedup, m.metrics)
	}

	m.logger.Info("consumer started",
		"queue", queue,
		"max_messages", m.cfg.MaxNumberOfMessages,
		"wait_time_seconds", m.cfg.WaitTimeSeconds,
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		messages, err := m.receive(ctx, queue)
		if err != nil {
			return err
		}

		for _, raw := range messages {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := m.handle(ctx, queue, newMessage(raw), handler); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) receive(ctx context.Context, queue string) ([]types.Message, error) {
	var messages []types.Message

	err := m.do(ctx, queue, func(api API) error {
		url, err := m.queueURL(ctx, api, queue)
		if err != nil {
			return err
		}

		out, err := api.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(url),
			MaxNumberOfMessages:         int32(m.cfg.MaxNumberOfMessages),
			WaitTimeSeconds:             int32(m.cfg.WaitTimeSeconds),
			VisibilityTimeout:           int32(m.cfg.VisibilityTimeout),
			MessageAttributeNames:       []string{"All"},
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		})
		if err != nil {
			return fmt.Errorf("receive from %s: %w", queue, err)
		}

		messages = out.Messages
		return nil
	})

	return messages, err
}

// handle подгружает вынесенное тело, вызывает handler и применяет решение.
func (m *Manager) handle(ctx context.Context, queue string, msg *Message, handler worker.MessageHandler) error {
	key, offloaded := msg.Attribute(PayloadKeyAttribute)
	if offloaded {
		body, err := m.fetchPayload(ctx, key)
		if err != nil {
			m.metrics.IncDisposition(transportName, worker.Requeue.String())
			return domain.ConsumerFailed(err)
		}
		msg.body = body
	}

	disposition, herr := handler.Handle(ctx, queue, msg)

	if err := m.settle(context.WithoutCancel(ctx), queue, msg, disposition); err != nil {
		m.logger.Error("failed to settle message",
			"queue", queue,
			"message_id", msg.id,
			"disposition", disposition.String(),
			"error", err,
		)
		if herr == nil {
			return domain.ConsumerFailed(fmt.Errorf("settle %s: %w", disposition, err))
		}
	}

	return herr
}

func (m *Manager) fetchPayload(ctx context.Context, key string) ([]byte, error) {
	if m.payloads == nil {
		return nil, fmt.Errorf("%w: no payload store for %s", ErrPayloadUnavailable, key)
	}

	body, err := m.payloads.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPayloadUnavailable, key, err)
	}
	return body, nil
}

// settle применяет решение к сообщению.
// SQS не умеет nack: ack и drop удаляют сообщение, requeue и retain
// оставляют его до истечения visibility timeout.
func (m *Manager) settle(ctx context.Context, queue string, msg *Message, d worker.Disposition) error {
	m.metrics.IncDisposition(transportName, d.String())

	if d.Redelivers() {
		return nil
	}

	err := m.do(ctx, queue, func(api API) error {
		url, err := m.queueURL(ctx, api, queue)
		if err != nil {
			return err
		}

		_, err = api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
			QueueUrl:      aws.String(url),
			ReceiptHandle: aws.String(msg.receipt),
		})
		if err != nil {
			return fmt.Errorf("delete message %s: %w", msg.id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if key, ok := msg.Attribute(PayloadKeyAttribute); ok && m.payloads != nil {
		if err := m.payloads.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete offloaded payload", "key", key, "error", err)
		}
	}
	return nil
}
