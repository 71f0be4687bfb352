package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

const (
	// WebhookJob — имя webhook job.
	WebhookJob = "webhook"

	defaultWebhookTimeout = 30 * time.Second
	maxErrorBody          = 512
)

// Параметры webhook job.
const (
	paramURL        = "url"
	paramMethod     = "method"
	paramHeaders    = "headers"
	paramBody       = "body"
	paramTimeoutSec = "timeout_sec"
)

// ErrWebhookFailed — webhook вернул неуспешный статус.
var ErrWebhookFailed = errors.New("webhook request failed")

// StatusError — неуспешный HTTP ответ webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap связывает с ErrWebhookFailed.
func (e *StatusError) Unwrap() error { return ErrWebhookFailed }

// Webhook выполняет HTTP запрос, описанный параметрами job.
type Webhook struct {
	client *http.Client
}

// NewWebhook создаёт Webhook. client может быть nil.
func NewWebhook(client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &Webhook{client: client}
}

// Process реализует domain.Processor.
func (w *Webhook) Process(ctx context.Context, job *domain.Job) error {
	req, err := w.buildRequest(ctx, job)
	if err != nil {
		return err
	}

	if sec, err := job.IntParameter(paramTimeoutSec); err == nil && sec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sec)*time.Second)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrWebhookFailed, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		if hint := retryAfter(resp.Header.Get("Retry-After")); hint > 0 {
			return domain.RetryAfter(statusErr, hint)
		}
		return statusErr
	default:
		return domain.Unresolvable(job, statusErr)
	}
}

// buildRequest собирает запрос из параметров job.
// Некорректные параметры — unresolvable ошибка.
func (w *Webhook) buildRequest(ctx context.Context, job *domain.Job) (*http.Request, error) {
	url, err := job.StringParameter(paramURL)
	if err != nil {
		return nil, err
	}

	method := http.MethodPost
	if m, err := job.StringParameter(paramMethod); err == nil && m != "" {
		method = strings.ToUpper(m)
	}

	var body io.Reader
	contentType := ""
	if raw, ok := job.Parameters[paramBody]; ok && raw != nil {
		data, err := serializeBody(raw)
		if err != nil {
			return nil, domain.Unresolvable(job, fmt.Errorf("%w: body: %w", domain.ErrJobValidation, err))
		}
		body = bytes.NewReader(data)
		if _, isString := raw.(string); !isString {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, domain.Unresolvable(job, fmt.Errorf("%w: %w", domain.ErrJobValidation, err))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := job.Parameters[paramHeaders].(map[string]any); ok {
		for key, val := range headers {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}
	req.Header.Set("X-Relay-Job-Id", job.UUID)
	req.Header.Set("X-Relay-Attempt", strconv.Itoa(job.Attempts))

	return req, nil
}

func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// retryAfter разбирает Retry-After в секундах. Формат даты не поддерживается.
func retryAfter(value string) time.Duration {
	sec, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
