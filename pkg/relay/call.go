package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/keystore"
)

const (
	// DefaultCallTTL bounds how long an undelivered call payload is retained.
	DefaultCallTTL = time.Hour
	// DefaultCallStatusTTL bounds how long an unread call result is retained.
	DefaultCallStatusTTL = 10 * time.Minute
)

type (
	// Calls relays opaque per-call payloads within a session, plus a separate
	// one-shot result channel. Both sides are pop-once.
	Calls struct {
		l         *zap.Logger
		store     keystore.Store
		ttl       time.Duration
		statusTTL time.Duration
	}
	CallsOption func(*Calls)
)

func NewCalls(l *zap.Logger, store keystore.Store, opts ...CallsOption) *Calls {
	inst := &Calls{
		l:         l.Named("calls"),
		store:     store,
		ttl:       DefaultCallTTL,
		statusTTL: DefaultCallStatusTTL,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// CallsWithTTL overrides the default call record TTL.
func CallsWithTTL(v time.Duration) CallsOption {
	return func(o *Calls) {
		if v > 0 {
			o.ttl = v
		}
	}
}

// CallsWithStatusTTL overrides the default call status TTL.
func CallsWithStatusTTL(v time.Duration) CallsOption {
	return func(o *Calls) {
		if v > 0 {
			o.statusTTL = v
		}
	}
}

// Create reserves a call record under a fresh server-generated identifier.
func (c *Calls) Create(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	callID := uuid.NewString()
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Reserve(ctx, callKey(sessionID, callID), ttl); err != nil {
		return "", errors.Wrap(err, "failed to reserve call")
	}
	c.l.Debug("call reserved", zap.String("sessionId", sessionID), zap.String("callId", callID))
	return callID, nil
}

// PutPayload writes the opaque call payload. Call records are write-once.
func (c *Calls) PutPayload(ctx context.Context, sessionID, callID, payload string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Put(ctx, callKey(sessionID, callID), payload, ttl); err != nil {
		return errors.Wrap(err, "failed to store call payload")
	}
	return nil
}

// Pop consumes the call payload. Exactly one concurrent caller receives it;
// everyone else, and anyone asking after expiry, gets ErrCallNotFound.
func (c *Calls) Pop(ctx context.Context, sessionID, callID string) (string, error) {
	payload, ok, err := c.store.Pop(ctx, callKey(sessionID, callID))
	if err != nil {
		return "", errors.Wrap(err, "failed to pop call")
	}
	if !ok {
		return "", ErrCallNotFound
	}
	return payload, nil
}

// PopAll drains every pending call for a session in one best-effort sweep.
// An empty map means nothing was pending, which is not an error.
func (c *Calls) PopAll(ctx context.Context, sessionID string) (map[string]string, error) {
	calls, err := c.store.PopMatching(ctx, callPrefix(sessionID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pop calls")
	}
	return calls, nil
}

// PutStatus writes the responder's result for a call. The status lives on its
// own key so the original requester polls a channel the responder never
// consumed.
func (c *Calls) PutStatus(ctx context.Context, callID, result string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.statusTTL
	}
	if err := c.store.Put(ctx, callStatusKey(callID), result, ttl); err != nil {
		return errors.Wrap(err, "failed to store call status")
	}
	return nil
}

// PopStatus consumes the call result. The second return is false when no
// result is pending, which is a valid outcome while the responder works.
func (c *Calls) PopStatus(ctx context.Context, callID string) (string, bool, error) {
	result, ok, err := c.store.Pop(ctx, callStatusKey(callID))
	if err != nil {
		return "", false, errors.Wrap(err, "failed to pop call status")
	}
	return result, ok, nil
}
