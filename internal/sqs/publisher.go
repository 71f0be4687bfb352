package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Push отправляет job в очередь.
//
// Задержка до MaxDelaySeconds — нативный DelaySeconds (секунды с отбрасыванием
// дробной части). Больше — передача внешнему планировщику, а без него
// задержка обрезается до MaxDelaySeconds.
func (m *Manager) Push(ctx context.Context, job *domain.Job, delay time.Duration, queue string) error {
	if queue == "" {
		queue = job.QueueName()
	}

	seconds := int64(delay / time.Second)
	if seconds > MaxDelaySeconds {
		if m.scheduler != nil {
			return m.schedule(ctx, job, delay, queue)
		}

		m.logger.Warn("delay exceeds sqs maximum, clamped",
			append(telemetry.JobAttrs(job),
				"target_queue", queue,
				"delay_seconds", seconds,
				"max_delay_seconds", MaxDelaySeconds,
			)...,
		)
		seconds = MaxDelaySeconds
	}

	body, err := job.Encode()
	if err != nil {
		return domain.Unresolvable(job, fmt.Errorf("encode job: %w", err))
	}

	return m.send(ctx, queue, body, int32(seconds))
}

// Deliver отправляет сериализованный job без задержки.
// Используется диспетчером планировщика.
func (m *Manager) Deliver(ctx context.Context, queue string, body []byte) error {
	return m.send(ctx, queue, body, 0)
}

// schedule передаёт job планировщику с уведомлением listeners.
func (m *Manager) schedule(ctx context.Context, job *domain.Job, delay time.Duration, queue string) error {
	at := m.now().Add(delay)

	previous := job.ExecutionPlannedAt
	job.PlanExecution(at)

	for _, l := range m.listeners {
		l.BeforeExecutionPlanned(ctx, job, at)
	}

	msg, err := scheduler.NewScheduledMessage(job, queue, m.brandID, at)
	if err == nil {
		err = m.scheduler.ScheduleMessage(ctx, msg)
	}

	for _, l := range m.listeners {
		l.AfterExecutionPlanned(ctx, job, at, err)
	}

	if err != nil {
		job.ExecutionPlannedAt = previous
		return fmt.Errorf("schedule job %s: %w", job.UUID, err)
	}

	m.logger.Info("job handed off to scheduler",
		append(telemetry.JobAttrs(job), "target_queue", queue, "planned_at", at, "event_id", msg.EventID)...,
	)
	return nil
}

// send отправляет тело, вынося его в PayloadStore, если оно больше MaxMessageSize.
func (m *Manager) send(ctx context.Context, queue string, body []byte, delaySeconds int32) error {
	var attrs map[string]types.MessageAttributeValue

	if len(body) > MaxMessageSize {
		if m.payloads == nil {
			return domain.Unresolvable(nil, fmt.Errorf("%w: %d bytes for %s", ErrPayloadTooLarge, len(body), queue))
		}

		key := payloadKey(queue)
		if err := m.payloads.Put(ctx, key, body); err != nil {
			return fmt.Errorf("offload payload for %s: %w", queue, err)
		}

		attrs = payloadAttributes(key)
		body = []byte(key)
	}

	return m.do(ctx, queue, func(api API) error {
		url, err := m.queueURL(ctx, api, queue)
		if err != nil {
			return err
		}

		_, err = api.SendMessage(ctx, &awssqs.SendMessageInput{
			QueueUrl:          aws.String(url),
			MessageBody:       aws.String(string(body)),
			DelaySeconds:      delaySeconds,
			MessageAttributes: attrs,
		})
		if err != nil {
			return fmt.Errorf("send message to %s: %w", queue, err)
		}
		return nil
	})
}
