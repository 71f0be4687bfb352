package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

const transportName = "rabbitmq"

// Channel — подмножество методов *amqp.Channel, которыми пользуется менеджер.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Dialer открывает соединение и канал.
type Dialer func(ctx context.Context, cfg Config) (Channel, io.Closer, error)

// DialAMQP — Dialer для настоящего брокера.
func DialAMQP(_ context.Context, cfg Config) (Channel, io.Closer, error) {
	conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
		Vhost:     cfg.VHost,
		Heartbeat: cfg.Heartbeat,
		Dial:      amqp.DefaultDial(cfg.ConnectionTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	return ch, conn, nil
}

// Connection — ленивое AMQP соединение с ограниченным числом переподключений.
//
// Соединение открывается при первом использовании. Каждая попытка
// переподключения увеличивает общий счётчик; после MaxReconnects
// попыток все операции завершаются ErrReconnectLimit.
type Connection struct {
	cfg     Config
	dial    Dialer
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu         sync.Mutex
	conn       io.Closer
	channel    Channel
	reconnects int
	closed     bool
}

// NewConnection создаёт соединение. Подключение происходит при первой операции.
func NewConnection(cfg Config, dial Dialer, logger *slog.Logger, metrics *telemetry.Metrics) *Connection {
	if dial == nil {
		dial = DialAMQP
	}

	return &Connection{
		cfg:     cfg.withDefaults(),
		dial:    dial,
		logger:  telemetry.OrDefault(logger),
		metrics: metrics,
	}
}

// Do выполняет fn с текущим каналом.
//
// Ошибки соединения приводят к переподключению и повтору fn,
// остальные ошибки возвращаются как есть.
func (c *Connection) Do(ctx context.Context, queue string, fn func(ch Channel) error) error {
	for {
		ch, err := c.acquire(ctx)
		if errors.Is(err, ErrNoChannel) {
			return err
		}
		if err == nil {
			err = fn(ch)
			if err == nil || !isConnectionError(err) {
				return err
			}
		}

		if rerr := c.recover(ctx, queue, err); rerr != nil {
			return rerr
		}
	}
}

// acquire возвращает открытый канал, подключаясь при необходимости.
func (c *Connection) acquire(ctx context.Context) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ConsumerFailed(fmt.Errorf("%w: connection closed", ErrNoChannel))
	}
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}

	ch, conn, err := c.dial(ctx, c.cfg)
	if err != nil {
		return nil, err
	}

	c.channel = ch
	c.conn = conn
	c.logger.Info("connected to RabbitMQ", "host", c.cfg.Host, "vhost", c.cfg.VHost)

	return ch, nil
}

// recover сбрасывает соединение и ждёт перед следующей попыткой.
func (c *Connection) recover(ctx context.Context, queue string, cause error) error {
	c.mu.Lock()
	c.reconnects++
	attempt := c.reconnects
	c.dropLocked()
	c.mu.Unlock()

	c.metrics.IncReconnect(transportName)

	if attempt > c.cfg.MaxReconnects {
		c.logger.Error("reconnect limit reached",
			"queue", queue,
			"attempt", attempt,
			"max_reconnects", c.cfg.MaxReconnects,
			"error", cause,
		)
		return domain.ConsumerFailed(fmt.Errorf("%w (%d): %w", ErrReconnectLimit, c.cfg.MaxReconnects, cause))
	}

	delay := backoff(c.cfg.ReconnectBackoff, attempt)
	c.logger.Warn("attempting to reconnect",
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

// dropLocked закрывает текущие канал и соединение. Вызывается под mu.
func (c *Connection) dropLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Reconnects возвращает число выполненных попыток переподключения.
func (c *Connection) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// Close закрывает соединение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		c.channel = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		c.conn = nil
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Info("connection closed")
	return nil
}

// backoff: base * 2^(attempt-1), но не больше 30 секунд.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < maxReconnectBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxReconnectBackoff)
}

// isConnectionError сообщает, исправит ли ошибку переподключение.
func isConnectionError(err error) bool {
	if errors.Is(err, amqp.ErrClosed) || errors.Is(err, ErrDeliveriesClosed) {
		return true
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover || amqpErr.Code == amqp.ConnectionForced || amqpErr.Code == amqp.ChannelError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
