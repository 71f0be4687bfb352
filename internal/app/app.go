// Package app собирает компоненты relay из конфигурации.
//
// Используется командами relay worker, relay scheduler и остальными командами CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/blob"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/dedup"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/sqs"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/worker"
)

// Transport — менеджер очередей. Реализуется *mq.Manager и *sqs.Manager.
type Transport interface {
	worker.Pusher
	worker.Source
	scheduler.Deliverer
	Close() error
}

// App держит общие зависимости и ресурсы для закрытия.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	closers []func() error
}

// New создаёт App.
func New(cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics) *App {
	return &App{
		Config:  cfg,
		Logger:  telemetry.OrDefault(logger),
		Metrics: metrics,
	}
}

// Close освобождает ресурсы в обратном порядке создания.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Transport создаёт менеджер выбранного транспорта.
func (a *App) Transport(ctx context.Context) (Transport, error) {
	switch a.Config.Transport {
	case config.TransportRabbitMQ:
		m, err := mq.NewManager(mq.ManagerConfig{
			Config:  a.Config.RabbitMQ,
			Logger:  a.Logger,
			Metrics: a.Metrics,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(m.Close)
		return m, nil

	case config.TransportSQS:
		return a.SQS(ctx)

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, a.Config.Transport)
	}
}

// SQS создаёт менеджер SQS с необязательными планировщиком,
// хранилищем payload и дедупликацией.
func (a *App) SQS(ctx context.Context) (*sqs.Manager, error) {
	cfg := a.Config

	mcfg := sqs.ManagerConfig{
		Config:        cfg.SQS,
		BrandID:       cfg.Sched.BrandID,
		PlanListeners: []worker.ExecutionPlanListener{worker.LoggingPlanListener{Logger: a.Logger}},
		Logger:        a.Logger,
		Metrics:       a.Metrics,
	}

	if cfg.Sched.URL != "" {
		mcfg.Scheduler = scheduler.NewHTTPClient(scheduler.HTTPClientConfig{
			BaseURL: cfg.Sched.URL,
			Logger:  a.Logger,
		})
	}

	if cfg.SQS.PayloadBucket != "" {
		client, err := blob.NewClient(ctx, blob.ClientConfig{
			Region:          cfg.SQS.Region,
			Endpoint:        cfg.SQS.Endpoint,
			AccessKeyID:     cfg.SQS.AccessKeyID,
			SecretAccessKey: cfg.SQS.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}

		store, err := blob.NewS3Store(client, cfg.SQS.PayloadBucket)
		if err != nil {
			return nil, err
		}
		mcfg.Payloads = store
	}

	if cfg.Dedup.Enabled {
		mcfg.Deduplicator = a.Deduplicator()
	}

	m, err := sqs.NewManager(mcfg)
	if err != nil {
		return nil, err
	}
	a.onClose(m.Close)
	return m, nil
}

// Deduplicator создаёт дедупликацию поверх Redis.
func (a *App) Deduplicator() *dedup.Deduplicator {
	rdb := dedup.NewRedisClient(a.Config.Redis)
	a.onClose(rdb.Close)

	return dedup.New(dedup.Config{
		Store:  dedup.NewRedisStore(rdb),
		Prefix: a.Config.Dedup.Prefix,
		Window: a.Config.Dedup.Window,
		Logger: a.Logger,
	})
}

// Worker собирает конвейер и воркер для очереди.
// Пустая очередь — очередь первого зарегистрированного job.
func (a *App) Worker(transport Transport, defs *domain.Definitions, queue string) (*worker.Worker, error) {
	if queue == "" {
		if queues := defs.Queues(); len(queues) > 0 {
			queue = queues[0]
		}
	}
	if queue == "" {
		return nil, worker.ErrNoQueue
	}

	var hooks []worker.BeforeLoadHook
	if len(a.Config.Worker.Blacklist) > 0 {
		hooks = append(hooks, worker.NewBlacklistHook(a.Config.Worker.Blacklist...))
	}

	pipeline := worker.NewPipeline(worker.PipelineConfig{
		Loader: domain.NewJobLoader(defs),
		Executor: worker.NewExecutor(worker.ExecutorConfig{
			Logger:  a.Logger,
			Metrics: a.Metrics,
		}),
		Resolver: worker.NewFailResolver(transport, a.Logger, a.Metrics),
		Hooks:    hooks,
		Logger:   a.Logger,
	})

	return worker.New(worker.Config{
		Source:  transport,
		Handler: pipeline,
		Queue:   queue,
		Logger:  a.Logger,
	}), nil
}
