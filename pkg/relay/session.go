package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/keystore"
)

// DefaultSessionTTL bounds how long a reserved or bound session is retained.
const DefaultSessionTTL = 24 * time.Hour

type (
	// Sessions drives the session lifecycle: reservation, payload binding,
	// polling and teardown.
	Sessions struct {
		l     *zap.Logger
		store keystore.Store
		ttl   time.Duration
	}
	SessionsOption func(*Sessions)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewSessions(l *zap.Logger, store keystore.Store, opts ...SessionsOption) *Sessions {
	inst := &Sessions{
		l:     l.Named("sessions"),
		store: store,
		ttl:   DefaultSessionTTL,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// SessionsWithTTL overrides the default session TTL.
func SessionsWithTTL(v time.Duration) SessionsOption {
	return func(o *Sessions) {
		if v > 0 {
			o.ttl = v
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Create reserves an empty session record and returns its fresh identifier.
// The session holds no payload until a counterparty binds one.
func (s *Sessions) Create(ctx context.Context, ttl time.Duration) (string, error) {
	sessionID := uuid.NewString()
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.store.Reserve(ctx, sessionKey(sessionID), ttl); err != nil {
		return "", errors.Wrap(err, "failed to reserve session")
	}
	s.l.Debug("session reserved", zap.String("sessionId", sessionID))
	return sessionID, nil
}

// Bind writes the encrypted payload into a previously reserved session and
// returns the absolute expiry derived from the TTL just set. Binding a
// session that was never reserved, or whose reservation has expired, fails
// with ErrTokenExpired instead of creating a record.
func (s *Sessions) Bind(ctx context.Context, sessionID, payload string, ttl time.Duration) (time.Time, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	err := s.store.Bind(ctx, sessionKey(sessionID), payload, ttl)
	if errors.Is(err, keystore.ErrNotFound) {
		return time.Time{}, ErrTokenExpired
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to bind session")
	}
	return time.Now().Add(ttl), nil
}

// Fetch returns the bound payload and its expiry without consuming the
// record, so repeated polling is safe. The second return is false when the
// session is absent, which is a valid terminal outcome, not an error.
func (s *Sessions) Fetch(ctx context.Context, sessionID string) (string, time.Time, bool, error) {
	key := sessionKey(sessionID)
	payload, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", time.Time{}, false, errors.Wrap(err, "failed to fetch session")
	}
	if !ok {
		return "", time.Time{}, false, nil
	}
	remaining, err := s.store.TTLRemaining(ctx, key)
	if err != nil {
		return "", time.Time{}, false, errors.Wrap(err, "failed to read session ttl")
	}
	return payload, time.Now().Add(remaining), true, nil
}

// Teardown removes the session record and its push binding. It is idempotent
// and succeeds even when nothing existed.
func (s *Sessions) Teardown(ctx context.Context, sessionID string) error {
	return multierr.Combine(
		s.store.Delete(ctx, sessionKey(sessionID)),
		s.store.Delete(ctx, pushSessionKey(sessionID)),
	)
}
