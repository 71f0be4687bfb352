package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/telemetry"
)

// MessagesPath — путь приёма сообщений у HTTP планировщика.
const MessagesPath = "/api/v1/scheduled-messages"

const defaultClientTimeout = 10 * time.Second

// HTTPClient — клиент внешнего HTTP планировщика.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPClientConfig — конфигурация HTTPClient.
type HTTPClientConfig struct {
	BaseURL string

	// Timeout — таймаут запроса (default: 10s). Игнорируется, если задан Client.
	Timeout time.Duration
	Client  *http.Client

	Logger *slog.Logger
}

// NewHTTPClient создаёт новый HTTPClient.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  telemetry.OrDefault(cfg.Logger),
	}
}

// ScheduleMessage отправляет сообщение планировщику.
// Любой ответ вне 2xx — ErrScheduleRejected.
func (c *HTTPClient) ScheduleMessage(ctx context.Context, msg ScheduledMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MessagesPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("schedule message %s: %w", msg.EventID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrScheduleRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Debug("message scheduled",
		"event_id", msg.EventID,
		"job_uuid", msg.JobID,
		"queue", msg.DestinationQueueName,
		"deliver_at", msg.DeliveryScheduledAt,
	)

	return nil
}
