// Package config загружает конфигурацию relay из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/shaiso/Relay/internal/dedup"
	"github.com/shaiso/Relay/internal/jobs"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/sqs"
)

// Транспорты.
const (
	TransportRabbitMQ = "rabbitmq"
	TransportSQS      = "sqs"
)

// ErrUnknownTransport — RELAY_TRANSPORT не rabbitmq и не sqs.
var ErrUnknownTransport = errors.New("unknown transport")

// Config — конфигурация всех компонентов relay.
type Config struct {
	// Transport — rabbitmq или sqs.
	Transport string `env:"RELAY_TRANSPORT" envDefault:"rabbitmq"`

	RabbitMQ mq.Config         `envPrefix:"RABBITMQ_"`
	SQS      sqs.Config        `envPrefix:"SQS_"`
	Redis    dedup.RedisConfig `envPrefix:"REDIS_"`
	Dedup    Dedup             `envPrefix:"DEDUP_"`
	Jobs     jobs.Config       `envPrefix:"JOBS_"`
	Worker   Worker            `envPrefix:"WORKER_"`
	Sched    Scheduler         `envPrefix:"SCHEDULER_"`

	// DatabaseURL — Postgres хранилища планировщика.
	DatabaseURL string `env:"DB_URL"`
}

// Dedup — параметры дедупликации (DEDUP_*).
type Dedup struct {
	Enabled bool          `env:"ENABLED"`
	Prefix  string        `env:"PREFIX" envDefault:"relay:dedup:"`
	Window  time.Duration `env:"WINDOW" envDefault:"300s"`
}

// Worker — параметры команды relay worker (WORKER_*).
type Worker struct {
	// Queue — очередь; пусто — очередь первого встроенного job.
	Queue string `env:"QUEUE"`
	Addr  string `env:"ADDR" envDefault:":8082"`

	// Blacklist — UUID jobs, которые отбрасываются без выполнения.
	Blacklist []string `env:"BLACKLIST"`
}

// Scheduler — параметры планировщика (SCHEDULER_*).
type Scheduler struct {
	// URL — внешний HTTP планировщик для задержек больше 15 минут на SQS.
	URL     string `env:"URL"`
	BrandID string `env:"BRAND_ID"`

	Addr      string        `env:"ADDR" envDefault:":8081"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"100"`
	Interval  time.Duration `env:"INTERVAL" envDefault:"1s"`

	// Повторы доставки сообщений диспетчером relay scheduler.
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"10"`
	RetryDelay          time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
}

// Load читает конфигурацию из окружения.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = scheduler.DefaultDSN
	}

	if cfg.Transport != TransportRabbitMQ && cfg.Transport != TransportSQS {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}

	return cfg, nil
}
