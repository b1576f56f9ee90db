package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pairbridge/pairbridge/pkg/relay"
)

func TestDispatcher_Notify_Webhook(t *testing.T) {
	var (
		requests atomic.Int64
		body     atomic.Value
	)
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		bytes, _ := io.ReadAll(r.Body)
		body.Store(string(bytes))
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t))
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
		Context:   map[string]string{"dappName": "Test"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), requests.Load())
	payload := body.Load().(string)
	assert.Contains(t, payload, "session-1")
	assert.Contains(t, payload, "call-1")
	assert.Contains(t, payload, "Test")
}

func TestDispatcher_Notify_TokenEnvelope(t *testing.T) {
	var body atomic.Value
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=secret", r.Header.Get("Authorization"))
		bytes, _ := io.ReadAll(r.Body)
		body.Store(string(bytes))
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t),
		DispatcherWithEndpoint(svr.URL),
		DispatcherWithAPIKey("secret"),
	)
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "fcm", Token: "token-1"}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.NoError(t, err)

	payload := body.Load().(string)
	assert.Contains(t, payload, `"to":"token-1"`)
	assert.Contains(t, payload, "session-1")
	assert.Contains(t, payload, "call-1")
}

func TestDispatcher_Notify_RetryAfter(t *testing.T) {
	var requests atomic.Int64
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t))
	start := time.Now()
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.NoError(t, err)

	// the dispatcher honored the directed one second delay
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int64(2), requests.Load())
}

func TestDispatcher_Notify_NoRetryDirective(t *testing.T) {
	var requests atomic.Int64
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t))
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.ErrorIs(t, err, ErrPushDelivery)

	// no directive, no retry
	assert.Equal(t, int64(1), requests.Load())
}

func TestDispatcher_Notify_AttemptCap(t *testing.T) {
	var requests atomic.Int64
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t), DispatcherWithMaxAttempts(2))
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.ErrorIs(t, err, ErrPushDelivery)

	// one directed retry, then the cap
	assert.Equal(t, int64(2), requests.Load())
}

func TestDispatcher_Notify_BackoffBudget(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	dispatcher := NewDispatcher(zaptest.NewLogger(t),
		DispatcherWithMaxAttempts(10),
		DispatcherWithMaxBackoff(time.Second),
	)
	start := time.Now()
	err := dispatcher.Notify(context.Background(), relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.ErrorIs(t, err, ErrPushDelivery)

	// the 2s directive exceeds the 1s budget, so no sleep happened at all
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcher_Notify_ContextCanceled(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	dispatcher := NewDispatcher(zaptest.NewLogger(t), DispatcherWithMaxBackoff(time.Minute))
	start := time.Now()
	err := dispatcher.Notify(ctx, relay.Destination{Type: "webhook", Webhook: svr.URL}, Notification{
		SessionID: "session-1",
		CallID:    "call-1",
	})
	require.ErrorIs(t, err, ErrPushDelivery)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
}
