package sqs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/worker"
)

// Manager — менеджер очередей SQS.
//
// Реализует worker.Pusher, worker.Source и scheduler.Deliverer.
type Manager struct {
	cfg     Config
	factory ClientFactory
	logger  *slog.Logger
	metrics *telemetry.Metrics

	scheduler scheduler.Scheduler
	brandID   string
	listeners []worker.ExecutionPlanListener
	payloads  PayloadStore
	dedup     worker.DuplicateChecker
	now       func() time.Time

	mu         sync.Mutex
	api        API
	reconnects int
	urls       map[string]string
}

// ManagerConfig — конфигурация Manager.
type ManagerConfig struct {
	Config Config

	// Factory — опционально, по умолчанию NewClient.
	Factory ClientFactory

	// Scheduler принимает jobs с задержкой больше MaxDelaySeconds.
	// nil — задержка обрезается до MaxDelaySeconds.
	Scheduler scheduler.Scheduler
	BrandID   string

	// PlanListeners получают события вокруг передачи job планировщику.
	PlanListeners []worker.ExecutionPlanListener

	// Payloads хранит тела больше MaxMessageSize (опционально).
	Payloads PayloadStore

	// Deduplicator проверяет MessageId до декодирования (опционально).
	Deduplicator worker.DuplicateChecker

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Clock   func() time.Time
}

// NewManager проверяет конфигурацию и создаёт Manager.
// Клиент создаётся при первой операции.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}

	factory := cfg.Factory
	if factory == nil {
		factory = NewClient
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Manager{
		cfg:       cfg.Config.withDefaults(),
		factory:   factory,
		logger:    telemetry.OrDefault(cfg.Logger).With("transport", transportName),
		metrics:   cfg.Metrics,
		scheduler: cfg.Scheduler,
		brandID:   cfg.BrandID,
		listeners: cfg.PlanListeners,
		payloads:  cfg.Payloads,
		dedup:     cfg.Deduplicator,
		now:       clock,
		urls:      make(map[string]string),
	}, nil
}

// CheckConnection проверяет доступность SQS.
func (m *Manager) CheckConnection(ctx context.Context) error {
	return m.do(ctx, "", func(api API) error {
		if _, err := api.ListQueues(ctx, &awssqs.ListQueuesInput{MaxResults: aws.Int32(1)}); err != nil {
			return fmt.Errorf("list queues: %w", err)
		}
		return nil
	})
}

// Close сбрасывает клиент. SDK не держит соединений, которые нужно закрывать.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.api = nil
	return nil
}
