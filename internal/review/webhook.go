package review

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// WebhookQueue posts each item as JSON to a review endpoint. Calls go
// through a circuit breaker so a dead endpoint fails fast instead of
// stalling ingestion.
type WebhookQueue struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewWebhookQueue returns a queue posting to url.
func NewWebhookQueue(url string, retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) *WebhookQueue {
	retry.OnRetry = resilience.RetryLogger("review", "webhook")
	breaker.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("review: webhook circuit state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &WebhookQueue{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: resilience.NewCircuitBreaker(breaker),
		retry:   retry,
	}
}

func (q *WebhookQueue) Enqueue(ctx context.Context, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "review: marshal item")
	}
	err = resilience.Do(ctx, q.retry, func(ctx context.Context) error {
		return q.breaker.Execute(ctx, func(ctx context.Context) error {
			return q.post(ctx, payload)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "review: enqueue %q", item.Company)
	}
	zap.L().Info("review: item sent",
		zap.String("batch_id", item.BatchID),
		zap.String("company", item.Company),
	)
	return nil
}

func (q *WebhookQueue) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "review: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "review: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(eris.Errorf("review: webhook returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("review: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// New picks the webhook queue when url is set, the log queue otherwise.
func New(url string, retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) Queue {
	if url == "" {
		return LogQueue{}
	}
	return NewWebhookQueue(url, retry, breaker)
}
