package sqs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/shaiso/Relay/internal/domain"
)

const transportName = "sqs"

// API — методы SQS клиента, которыми пользуется менеджер.
// Реализуется *awssqs.Client.
type API interface {
	SendMessage(ctx context.Context, in *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	GetQueueUrl(ctx context.Context, in *awssqs.GetQueueUrlInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, in *awssqs.CreateQueueInput, optFns ...func(*awssqs.Options)) (*awssqs.CreateQueueOutput, error)
	ListQueues(ctx context.Context, in *awssqs.ListQueuesInput, optFns ...func(*awssqs.Options)) (*awssqs.ListQueuesOutput, error)
}

// ClientFactory создаёт SQS клиент. Вызывается лениво и при пересоздании.
type ClientFactory func(ctx context.Context, cfg Config) (API, error)

// NewClient — ClientFactory для AWS SDK.
// Статические ключи используются, если заданы, иначе — стандартная цепочка credentials.
func NewClient(ctx context.Context, cfg Config) (API, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// do выполняет fn с текущим клиентом.
//
// Транзиентные ошибки (сеть, 5xx) пересоздают клиент и повторяют fn.
// Счётчик пересозданий общий на менеджер; после MaxReconnects —
// ErrReconnectLimit.
func (m *Manager) do(ctx context.Context, queue string, fn func(api API) error) error {
	for {
		api, err := m.acquire(ctx)
		if err == nil {
			err = fn(api)
			if err == nil || !isTransient(err) {
				return err
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if rerr := m.recover(ctx, queue, err); rerr != nil {
			return rerr
		}
	}
}

func (m *Manager) acquire(ctx context.Context) (API, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.api != nil {
		return m.api, nil
	}

	api, err := m.factory(ctx, m.cfg)
	if err != nil {
		return nil, err
	}

	m.api = api
	m.logger.Info("sqs client created", "region", m.cfg.Region, "version", m.cfg.Version)
	return api, nil
}

func (m *Manager) recover(ctx context.Context, queue string, cause error) error {
	m.mu.Lock()
	m.reconnects++
	attempt := m.reconnects
	m.api = nil
	m.mu.Unlock()

	m.metrics.IncReconnect(transportName)

	if attempt > m.cfg.MaxReconnects {
		m.logger.Error("reconnect limit reached",
			"queue", queue,
			"attempt", attempt,
			"max_reconnects", m.cfg.MaxReconnects,
			"error", cause,
		)
		return domain.ConsumerFailed(fmt.Errorf("%w (%d): %w", ErrReconnectLimit, m.cfg.MaxReconnects, cause))
	}

	delay := backoff(m.cfg.ReconnectBackoff, attempt)
	m.logger.Warn("recreating sqs client",
		"queue", queue,
		"attempt", attempt,
		"delay", delay,
		"error", cause,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < maxReconnectBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxReconnectBackoff)
}

// isTransient: сетевые ошибки и серверные ошибки AWS.
func isTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// queueURL возвращает URL очереди, создавая её при отсутствии.
// Результат запоминается на время жизни менеджера.
func (m *Manager) queueURL(ctx context.Context, api API, queue string) (string, error) {
	m.mu.Lock()
	url, ok := m.urls[queue]
	m.mu.Unlock()
	if ok {
		return url, nil
	}

	out, err := api.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{QueueName: aws.String(queue)})
	if err == nil {
		url = aws.ToString(out.QueueUrl)
	} else {
		var notExist *types.QueueDoesNotExist
		if !errors.As(err, &notExist) {
			return "", fmt.Errorf("get queue url %s: %w", queue, err)
		}

		created, err := api.CreateQueue(ctx, &awssqs.CreateQueueInput{QueueName: aws.String(queue)})
		if err != nil {
			return "", fmt.Errorf("create queue %s: %w", queue, err)
		}
		url = aws.ToString(created.QueueUrl)
		m.logger.Info("queue created", "queue", queue, "url", url)
	}

	m.mu.Lock()
	m.urls[queue] = url
	m.mu.Unlock()

	return url, nil
}
