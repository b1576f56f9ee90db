package keystore

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/metrics"
)

const defaultResolveAttempts = 3

// Connector resolves a write-capable handle to the backing store.
// Resolve is called on every store operation, never once at startup, since
// the writable member can change between calls.
type Connector interface {
	Resolve(ctx context.Context) (redis.Cmdable, error)
	Close() error
}

// ------------------------------------------------------------------------------------------------
// ~ Direct
// ------------------------------------------------------------------------------------------------

type directConnector struct {
	client *redis.Client
}

// NewDirectConnector returns a connector bound to a single fixed store node.
func NewDirectConnector(addr string, db int) Connector {
	return &directConnector{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

func (c *directConnector) Resolve(_ context.Context) (redis.Cmdable, error) {
	return c.client, nil
}

func (c *directConnector) Close() error {
	return c.client.Close()
}

// ------------------------------------------------------------------------------------------------
// ~ Sentinel
// ------------------------------------------------------------------------------------------------

type sentinelConnector struct {
	l          *zap.Logger
	sentinels  []*redis.SentinelClient
	masterName string
	db         int
	attempts   int

	mu      sync.Mutex
	addr    string
	current *redis.Client
}

type SentinelConnectorOption func(*sentinelConnector)

// SentinelConnectorWithResolveAttempts bounds the number of times Resolve asks
// the monitor layer for the current primary before giving up.
func SentinelConnectorWithResolveAttempts(v int) SentinelConnectorOption {
	return func(o *sentinelConnector) {
		if v > 0 {
			o.attempts = v
		}
	}
}

// NewSentinelConnector returns a connector that asks the sentinel monitors for
// the current primary on every resolution.
func NewSentinelConnector(l *zap.Logger, sentinelAddrs []string, masterName string, db int, opts ...SentinelConnectorOption) Connector {
	sentinels := make([]*redis.SentinelClient, 0, len(sentinelAddrs))
	for _, addr := range sentinelAddrs {
		sentinels = append(sentinels, redis.NewSentinelClient(&redis.Options{
			Addr: addr,
		}))
	}

	inst := &sentinelConnector{
		l:          l.Named("connector.sentinel"),
		sentinels:  sentinels,
		masterName: masterName,
		db:         db,
		attempts:   defaultResolveAttempts,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

func (c *sentinelConnector) Resolve(ctx context.Context) (redis.Cmdable, error) {
	if len(c.sentinels) == 0 {
		return nil, errors.Wrap(ErrStoreUnavailable, "no sentinel addresses configured")
	}
	var errResolve error
	for attempt := 0; attempt < c.attempts; attempt++ {
		sentinel := c.sentinels[attempt%len(c.sentinels)]
		addr, err := sentinel.GetMasterAddrByName(ctx, c.masterName).Result()
		if err != nil {
			errResolve = err
			c.l.Warn("failed to resolve primary", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if len(addr) != 2 {
			errResolve = errors.Errorf("unexpected master address reply of length %d", len(addr))
			continue
		}
		return c.clientFor(net.JoinHostPort(addr[0], addr[1])), nil
	}
	metrics.StoreResolveFailedCounter.WithLabelValues().Inc()
	return nil, errors.Wrap(ErrStoreUnavailable, errResolve.Error())
}

// clientFor reuses the current client while the primary address is unchanged
// and swaps it out after a failover.
func (c *sentinelConnector) clientFor(addr string) *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.addr == addr {
		return c.current
	}
	if c.current != nil {
		c.l.Info("primary changed", zap.String("from", c.addr), zap.String("to", addr))
		_ = c.current.Close()
	}
	c.addr = addr
	c.current = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   c.db,
	})
	return c.current
}

func (c *sentinelConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		_ = c.current.Close()
		c.current = nil
	}
	var errClose error
	for _, sentinel := range c.sentinels {
		if err := sentinel.Close(); err != nil {
			errClose = err
		}
	}
	return errClose
}
