package mq

import (
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки пакета mq.
var (
	// ErrMissingConfig — не заданы обязательные параметры подключения.
	ErrMissingConfig = errors.New("missing rabbitmq configuration")

	// ErrReconnectLimit — исчерпан лимит переподключений менеджера.
	ErrReconnectLimit = errors.New("maximum reconnect limit reached")

	// ErrNoChannel — канал не открыт.
	ErrNoChannel = errors.New("no channel available")

	// ErrDeliveriesClosed — брокер закрыл канал доставки.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")
)

// Default configuration values.
const (
	defaultMaxReconnects    = 15
	defaultReconnectBackoff = time.Second
	maxReconnectBackoff     = 30 * time.Second
	defaultPrefetchCount    = 1
)

// Config — параметры подключения и потребления RabbitMQ.
// Заполняется из переменных окружения с префиксом RABBITMQ_.
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	VHost    string `env:"VHOST" envDefault:"/"`

	ConnectionTimeout time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"3s"`
	ReadWriteTimeout  time.Duration `env:"READ_WRITE_TIMEOUT" envDefault:"3s"`
	Heartbeat         time.Duration `env:"HEARTBEAT" envDefault:"10s"`

	// Consume params
	PrefetchCount int  `env:"PREFETCH_COUNT" envDefault:"1"`
	NoAck         bool `env:"NO_ACK"`

	// MaxReconnects — лимит переподключений на весь срок жизни менеджера.
	MaxReconnects    int           `env:"MAX_RECONNECTS" envDefault:"15"`
	ReconnectBackoff time.Duration `env:"RECONNECT_BACKOFF" envDefault:"1s"`
}

// Validate проверяет обязательные параметры и перечисляет отсутствующие.
func (c Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if c.Port <= 0 {
		missing = append(missing, "port")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// URL возвращает AMQP URL для подключения.
func (c Config) URL() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}

	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// withDefaults заполняет незаданные значения.
func (c Config) withDefaults() Config {
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = defaultReconnectBackoff
	}
	if c.PrefetchCount <= 0 {
		c.PrefetchCount = defaultPrefetchCount
	}
	return c
}
