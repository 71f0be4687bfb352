package sqs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ошибки пакета sqs.
var (
	// ErrMissingConfig — не заданы обязательные параметры подключения.
	ErrMissingConfig = errors.New("missing sqs configuration")

	// ErrInvalidConsumeParams — некорректные параметры потребления.
	ErrInvalidConsumeParams = errors.New("invalid sqs consume params")

	// ErrReconnectLimit — исчерпан лимит пересоздания клиента.
	ErrReconnectLimit = errors.New("maximum reconnect limit reached")

	// ErrPayloadTooLarge — тело больше лимита SQS, а хранилище payload не настроено.
	ErrPayloadTooLarge = errors.New("message payload too large")

	// ErrPayloadUnavailable — не удалось получить вынесенный payload.
	ErrPayloadUnavailable = errors.New("offloaded payload unavailable")
)

// Ограничения SQS.
const (
	// MaxDelaySeconds — максимальная нативная задержка (15 минут).
	MaxDelaySeconds = 900

	// MaxMessageSize — максимальный размер тела сообщения.
	MaxMessageSize = 256 * 1024

	maxNumberOfMessages = 10
	maxWaitTimeSeconds  = 20
)

// Default configuration values.
const (
	defaultMaxReconnects    = 15
	defaultReconnectBackoff = time.Second
	maxReconnectBackoff     = 30 * time.Second
)

// Config — параметры подключения и потребления SQS.
// Заполняется из переменных окружения с префиксом SQS_.
type Config struct {
	// Version — версия API (обязательна, фиксирована в SDK и только логируется).
	Version  string `env:"VERSION"`
	Region   string `env:"REGION"`
	Endpoint string `env:"ENDPOINT"`

	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`

	// Consume params
	MaxNumberOfMessages int `env:"MAX_NUMBER_OF_MESSAGES" envDefault:"1"`
	WaitTimeSeconds     int `env:"WAIT_TIME_SECONDS" envDefault:"20"`
	VisibilityTimeout   int `env:"VISIBILITY_TIMEOUT"`

	MaxReconnects    int           `env:"MAX_RECONNECTS" envDefault:"15"`
	ReconnectBackoff time.Duration `env:"RECONNECT_BACKOFF" envDefault:"1s"`

	// PayloadBucket — S3 bucket для тел больше MaxMessageSize.
	PayloadBucket string `env:"PAYLOAD_BUCKET"`
}

// Validate проверяет обязательные параметры и перечисляет отсутствующие.
func (c Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "region")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// validateConsume проверяет MaxNumberOfMessages (1..10) и WaitTimeSeconds (0..20).
func (c Config) validateConsume() error {
	if c.MaxNumberOfMessages < 1 || c.MaxNumberOfMessages > maxNumberOfMessages {
		return fmt.Errorf("%w: MaxNumberOfMessages must be 1..%d, got %d",
			ErrInvalidConsumeParams, maxNumberOfMessages, c.MaxNumberOfMessages)
	}
	if c.WaitTimeSeconds < 0 || c.WaitTimeSeconds > maxWaitTimeSeconds {
		return fmt.Errorf("%w: WaitTimeSeconds must be 0..%d, got %d",
			ErrInvalidConsumeParams, maxWaitTimeSeconds, c.WaitTimeSeconds)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = defaultReconnectBackoff
	}
	return c
}
