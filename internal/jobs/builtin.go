package jobs

import (
	"net/http"
	"time"

	"github.com/shaiso/Relay/internal/delay"
	"github.com/shaiso/Relay/internal/domain"
)

// Config — параметры встроенных jobs (JOBS_*).
type Config struct {
	WebhookQueue       string        `env:"WEBHOOK_QUEUE" envDefault:"relay.webhooks"`
	WebhookMaxAttempts int           `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"8"`
	WebhookBackoff     time.Duration `env:"WEBHOOK_BACKOFF" envDefault:"5s"`
	WebhookMaxBackoff  time.Duration `env:"WEBHOOK_MAX_BACKOFF" envDefault:"1h"`

	SleepQueue string `env:"SLEEP_QUEUE" envDefault:"relay.sleep"`
}

// Builtin возвращает реестр встроенных jobs. client может быть nil.
//
// webhook повторяется с экспоненциальной задержкой; задержки больше
// 15 минут на SQS уходят во внешний планировщик.
// sleep повторяется по таблице порогов не более трёх раз.
func Builtin(cfg Config, client *http.Client) (*domain.Definitions, error) {
	sleepStrategy, err := delay.NewDefined(time.Minute,
		delay.Threshold{Attempts: 1, Base: 10 * time.Second},
		delay.Threshold{Attempts: 0, Base: 0},
	)
	if err != nil {
		return nil, err
	}

	return domain.NewDefinitions(
		&domain.JobDefinition{
			Name:        WebhookJob,
			QueueName:   cfg.WebhookQueue,
			MaxAttempts: cfg.WebhookMaxAttempts,
			Loader:      domain.RequireParameters(paramURL),
			Strategy:    delay.NewExponential(cfg.WebhookBackoff, cfg.WebhookMaxBackoff),
			Processor:   NewWebhook(client),
		},
		&domain.JobDefinition{
			Name:        SleepJob,
			QueueName:   cfg.SleepQueue,
			MaxAttempts: 3,
			Loader:      domain.RequireParameters(paramDurationMs),
			Strategy:    sleepStrategy,
			Processor:   domain.ProcessorFunc(Sleep),
		},
	)
}
