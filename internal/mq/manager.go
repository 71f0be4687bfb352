package mq

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/telemetry"
)

// Manager — менеджер очередей RabbitMQ.
//
// Реализует worker.Pusher и worker.Source. Потребление и публикация
// идут через разные соединения: переподключение после ошибки Push
// из handler не закрывает канал, которому принадлежит текущая доставка.
// Соединения не разделяются между менеджерами.
type Manager struct {
	cfg     Config
	conn    *Connection // потребление
	pub     *Connection // публикация
	topo    *topology
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// ManagerConfig — конфигурация Manager.
type ManagerConfig struct {
	Config Config

	// Dialer — опционально, по умолчанию DialAMQP.
	Dialer Dialer

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// NewManager проверяет конфигурацию и создаёт Manager.
// Соединение с брокером открывается при первой операции.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}

	logger := telemetry.OrDefault(cfg.Logger).With("transport", transportName)

	return &Manager{
		cfg:     cfg.Config.withDefaults(),
		conn:    NewConnection(cfg.Config, cfg.Dialer, logger.With("role", "consumer"), cfg.Metrics),
		pub:     NewConnection(cfg.Config, cfg.Dialer, logger.With("role", "publisher"), cfg.Metrics),
		topo:    newTopology(),
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// CheckConnection проверяет, что канал публикации к брокеру открыт.
func (m *Manager) CheckConnection(ctx context.Context) error {
	return m.pub.Do(ctx, "", func(ch Channel) error {
		if ch.IsClosed() {
			return amqp.ErrClosed
		}
		return nil
	})
}

// Close закрывает оба соединения.
func (m *Manager) Close() error {
	return errors.Join(m.conn.Close(), m.pub.Close())
}
