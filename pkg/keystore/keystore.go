package keystore

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by Bind when the key was never reserved or has
	// already expired. Absence of a key is indistinguishable from expiry.
	ErrNotFound = errors.New("keystore: key not found")
	// ErrWrite is returned when the backing store rejected a write.
	ErrWrite = errors.New("keystore: write failed")
	// ErrStoreUnavailable is returned when no writable store member could be
	// resolved within the configured number of attempts.
	ErrStoreUnavailable = errors.New("keystore: store unavailable")
)

// Store defines the contract for TTL-bounded record storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Reserve creates an empty record under key with the given TTL,
	// overwriting any previous value.
	Reserve(ctx context.Context, key string, ttl time.Duration) error

	// Bind writes value under key only if the key currently exists.
	// Returns ErrNotFound if the key was never reserved or has expired.
	Bind(ctx context.Context, key, value string, ttl time.Duration) error

	// Put writes value under key unconditionally with the given TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key. The second return is false if the key
	// is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Pop returns the value for key and removes it as one atomic operation.
	// At most one concurrent caller observes the value. The second return is
	// false if the key is absent.
	Pop(ctx context.Context, key string) (string, bool, error)

	// TTLRemaining returns the remaining lifetime of key, or 0 if the key is
	// absent or carries no expiry.
	TTLRemaining(ctx context.Context, key string) (time.Duration, error)

	// ScanPrefix returns all keys starting with prefix. The scan is drained
	// to completion before returning.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// PopMatching reads all keys starting with prefix and deletes them.
	// The result maps each key's suffix (the part after prefix) to its value.
	// This is a best-effort sweep: scan, read and delete are separate round
	// trips, and entries that vanish in between are omitted, not errors.
	PopMatching(ctx context.Context, prefix string) (map[string]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
