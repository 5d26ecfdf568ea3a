package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func testItem() Item {
	return Item{
		BatchID:    "BATCH-2026-03-04-a",
		Index:      2,
		Company:    "Acme Haulage",
		Kind:       "AmbiguousDuplicate",
		Candidates: []string{"lead-1", "lead-2"},
	}
}

func TestWebhookQueue_Posts(t *testing.T) {
	var got Item
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	q := NewWebhookQueue(srv.URL, fastRetry(), resilience.DefaultCircuitBreakerConfig())
	require.NoError(t, q.Enqueue(context.Background(), testItem()))
	assert.Equal(t, "Acme Haulage", got.Company)
	assert.Equal(t, []string{"lead-1", "lead-2"}, got.Candidates)
}

func TestWebhookQueue_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewWebhookQueue(srv.URL, fastRetry(), resilience.DefaultCircuitBreakerConfig())
	require.NoError(t, q.Enqueue(context.Background(), testItem()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookQueue_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	q := NewWebhookQueue(srv.URL, fastRetry(), resilience.DefaultCircuitBreakerConfig())
	err := q.Enqueue(context.Background(), testItem())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookQueue_CircuitOpensOnDeadEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	q := NewWebhookQueue(srv.URL, fastRetry(), resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	err := q.Enqueue(context.Background(), testItem())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())

	err = q.Enqueue(context.Background(), testItem())
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNew_FallsBackToLog(t *testing.T) {
	assert.IsType(t, LogQueue{}, New("", fastRetry(), resilience.DefaultCircuitBreakerConfig()))
	assert.IsType(t, &WebhookQueue{}, New("http://example.invalid", fastRetry(), resilience.DefaultCircuitBreakerConfig()))
	assert.NoError(t, LogQueue{}.Enqueue(context.Background(), testItem()))
}

func TestMemoryQueue(t *testing.T) {
	q := &MemoryQueue{}
	require.NoError(t, q.Enqueue(context.Background(), testItem()))
	items := q.Items()
	require.Len(t, items, 1)
	items[0].Company = "mutated"
	assert.Equal(t, "Acme Haulage", q.Items()[0].Company)
}
