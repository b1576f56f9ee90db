package keystore

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatchSize = 100

// RedisStore implements Store on a redis-compatible backend. Every operation
// resolves the writable member through the connector first.
type RedisStore struct {
	l         *zap.Logger
	connector Connector
}

// NewRedisStore returns a store backed by the node the connector resolves.
func NewRedisStore(l *zap.Logger, connector Connector) *RedisStore {
	return &RedisStore{
		l:         l.Named("keystore.redis"),
		connector: connector,
	}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) error {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := conn.Set(ctx, key, "", ttl).Err(); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}
	return nil
}

func (s *RedisStore) Bind(ctx context.Context, key, value string, ttl time.Duration) error {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return err
	}
	ok, err := conn.SetXX(ctx, key, value, ttl).Result()
	if err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := conn.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(ErrWrite, err.Error())
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return "", false, err
	}
	value, err := conn.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Pop uses GETDEL so that read and delete are one atomic server-side
// operation. A GET followed by a DEL would let two concurrent callers both
// observe the value.
func (s *RedisStore) Pop(ctx context.Context, key string) (string, bool, error) {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return "", false, err
	}
	value, err := conn.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) TTLRemaining(ctx context.Context, key string) (time.Duration, error) {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	ttl, err := conn.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -1 means no expiry, -2 means no such key
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ScanPrefix drains the cursor to completion. A single SCAN round trip is not
// guaranteed to return all matches.
func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := conn.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) PopMatching(ctx context.Context, prefix string) (map[string]string, error) {
	keys, err := s.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if len(keys) == 0 {
		return values, nil
	}

	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	results, err := conn.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, result := range results {
		// entries that expired between scan and read come back nil and are
		// dropped silently
		value, ok := result.(string)
		if !ok {
			continue
		}
		values[strings.TrimPrefix(keys[i], prefix)] = value
	}

	if err := conn.Del(ctx, keys...).Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	conn, err := s.connector.Resolve(ctx)
	if err != nil {
		return err
	}
	return conn.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.connector.Close()
}
