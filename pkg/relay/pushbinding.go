package relay

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/keystore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultPushBindingTTL bounds how long a push destination is kept on record.
const DefaultPushBindingTTL = 24 * time.Hour

// Destination is the external address the relay notifies when new data is
// available for a session.
type Destination struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Webhook string `json:"webhook,omitempty"`
}

type (
	// PushBindings associates sessions with their push destinations.
	PushBindings struct {
		l     *zap.Logger
		store keystore.Store
		ttl   time.Duration
	}
	PushBindingsOption func(*PushBindings)
)

func NewPushBindings(l *zap.Logger, store keystore.Store, opts ...PushBindingsOption) *PushBindings {
	inst := &PushBindings{
		l:     l.Named("pushbindings"),
		store: store,
		ttl:   DefaultPushBindingTTL,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// PushBindingsWithTTL overrides the default binding TTL.
func PushBindingsWithTTL(v time.Duration) PushBindingsOption {
	return func(o *PushBindings) {
		if v > 0 {
			o.ttl = v
		}
	}
}

// Bind writes the push destination for a session. The record carries its own
// TTL, independent of the session record.
func (p *PushBindings) Bind(ctx context.Context, sessionID string, destination Destination, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = p.ttl
	}
	data, err := json.MarshalToString(destination)
	if err != nil {
		return errors.Wrap(err, "failed to encode push destination")
	}
	if err := p.store.Put(ctx, pushSessionKey(sessionID), data, ttl); err != nil {
		return errors.Wrap(err, "failed to store push destination")
	}
	return nil
}

// Fetch returns the push destination for a session. A missing binding is a
// hard failure for call creation, there is no way to wake the counterparty.
func (p *PushBindings) Fetch(ctx context.Context, sessionID string) (Destination, error) {
	data, ok, err := p.store.Get(ctx, pushSessionKey(sessionID))
	if err != nil {
		return Destination{}, errors.Wrap(err, "failed to fetch push destination")
	}
	if !ok {
		return Destination{}, ErrPushBindingMissing
	}
	var destination Destination
	if err := json.UnmarshalFromString(data, &destination); err != nil {
		return Destination{}, errors.Wrap(err, "failed to decode push destination")
	}
	return destination, nil
}

// Remove deletes the binding. Removing an absent binding is not an error.
func (p *PushBindings) Remove(ctx context.Context, sessionID string) error {
	return p.store.Delete(ctx, pushSessionKey(sessionID))
}
