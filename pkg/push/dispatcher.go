package push

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/metrics"
	"github.com/pairbridge/pairbridge/pkg/relay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrPushDelivery is returned once the retry budget against the push endpoint
// is exhausted. The call record the notification was about stays retrievable.
var ErrPushDelivery = errors.New("push: delivery failed")

const (
	defaultEndpoint    = "https://fcm.googleapis.com/fcm/send"
	defaultMaxAttempts = 3
	defaultMaxBackoff  = 30 * time.Second
)

type (
	// Dispatcher builds wake-up envelopes and delivers them over HTTP,
	// honoring server-directed Retry-After backoff within a hard attempt cap
	// and a cumulative sleep cap.
	Dispatcher struct {
		l           *zap.Logger
		client      *http.Client
		endpoint    string
		apiKey      string
		maxAttempts int
		maxBackoff  time.Duration
	}
	DispatcherOption func(*Dispatcher)
)

// Notification carries what the responder needs to wake up and poll.
type Notification struct {
	SessionID string
	CallID    string
	Context   map[string]string
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewDispatcher(l *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	inst := &Dispatcher{
		l:           l.Named("push"),
		client:      http.DefaultClient,
		endpoint:    defaultEndpoint,
		maxAttempts: defaultMaxAttempts,
		maxBackoff:  defaultMaxBackoff,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// DispatcherWithHTTPClient sets the outbound HTTP client. It is shared by all
// in-flight requests and must be safe for concurrent use.
func DispatcherWithHTTPClient(v *http.Client) DispatcherOption {
	return func(o *Dispatcher) {
		o.client = v
	}
}

// DispatcherWithEndpoint sets the delivery endpoint used for token
// destinations without a webhook of their own.
func DispatcherWithEndpoint(v string) DispatcherOption {
	return func(o *Dispatcher) {
		o.endpoint = v
	}
}

// DispatcherWithAPIKey sets the authorization key sent to the push endpoint.
func DispatcherWithAPIKey(v string) DispatcherOption {
	return func(o *Dispatcher) {
		o.apiKey = v
	}
}

// DispatcherWithMaxAttempts caps the number of delivery attempts.
func DispatcherWithMaxAttempts(v int) DispatcherOption {
	return func(o *Dispatcher) {
		if v > 0 {
			o.maxAttempts = v
		}
	}
}

// DispatcherWithMaxBackoff caps the cumulative time spent sleeping on
// Retry-After directives across all attempts.
func DispatcherWithMaxBackoff(v time.Duration) DispatcherOption {
	return func(o *Dispatcher) {
		if v > 0 {
			o.maxBackoff = v
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Notify delivers a wake-up for one call to the destination. Retries are
// iterative, never recursive: the loop stops at the attempt cap, at the
// cumulative backoff cap, or when the context is canceled, whichever comes
// first.
func (d *Dispatcher) Notify(ctx context.Context, destination relay.Destination, notification Notification) error {
	body, err := json.Marshal(d.envelope(destination, notification))
	if err != nil {
		return errors.Wrap(err, "failed to encode push envelope")
	}

	endpoint := destination.Webhook
	if endpoint == "" {
		endpoint = d.endpoint
	}

	l := d.l.With(
		zap.String("sessionId", notification.SessionID),
		zap.String("callId", notification.CallID),
		zap.String("endpoint", endpoint),
	)

	var slept time.Duration
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		status, retryAfter, errPost := d.post(ctx, endpoint, body)
		if errPost != nil {
			metrics.PushDeliveryCounter.WithLabelValues("error").Inc()
			return errors.Wrap(ErrPushDelivery, errPost.Error())
		}
		if status == http.StatusOK {
			metrics.PushDeliveryCounter.WithLabelValues("success").Inc()
			return nil
		}

		l.Warn("push endpoint refused delivery",
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("retryAfter", retryAfter),
		)

		if retryAfter <= 0 || attempt == d.maxAttempts {
			break
		}
		if slept+retryAfter > d.maxBackoff {
			l.Warn("backoff budget exhausted", zap.Duration("slept", slept))
			break
		}
		metrics.PushRetryCounter.WithLabelValues().Inc()
		select {
		case <-ctx.Done():
			return errors.Wrap(ErrPushDelivery, ctx.Err().Error())
		case <-time.After(retryAfter):
			slept += retryAfter
		}
	}

	metrics.PushDeliveryCounter.WithLabelValues("failed").Inc()
	return ErrPushDelivery
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// envelope flattens the caller-supplied context around the record
// identifiers. Identifiers win on key collisions.
func (d *Dispatcher) envelope(destination relay.Destination, notification Notification) map[string]interface{} {
	data := map[string]string{}
	for k, v := range notification.Context {
		data[k] = v
	}
	data["sessionId"] = notification.SessionID
	data["callId"] = notification.CallID

	if destination.Webhook != "" {
		payload := make(map[string]interface{}, len(data))
		for k, v := range data {
			payload[k] = v
		}
		return payload
	}

	return map[string]interface{}{
		"to":      destination.Token,
		"android": map[string]string{"priority": "high"},
		"data":    data,
		"notification": map[string]string{
			"title": "New request",
			"body":  "A new request is waiting for you",
		},
	}
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to create push request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "key="+d.apiKey)
	}

	response, err := d.client.Do(req)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to reach push endpoint")
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	return response.StatusCode, parseRetryAfter(response.Header.Get("Retry-After")), nil
}

// parseRetryAfter reads the delay-seconds form of the header. Anything else
// counts as no directive.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
