package storage

import (
	"context"
	"time"
)

// KV is the key-value store every piece of persistent state lives in. The
// primitives mirror the Redis commands of the same names. Each call is
// atomic on its own; nothing spans calls.
type KV interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key without expiry, clearing any previous TTL.
	Set(ctx context.Context, key, value string) error

	// SetEX stores value at key and makes it expire after ttl.
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// MSet stores all pairs in one atomic write, clearing their TTLs.
	MSet(ctx context.Context, pairs map[string]string) error

	// MGet returns one entry per key, in order. Absent keys yield nil.
	MGet(ctx context.Context, keys ...string) ([]*string, error)

	// Expire sets a TTL on an existing key. It reports false if the key
	// does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// GetDelMSet removes key and stores the pairs that build derives from
	// its value, all in one transaction. It returns the removed value, or
	// ErrNotFound without writing anything. If the write fails, key stays.
	GetDelMSet(ctx context.Context, key string, build func(value string) map[string]string) (string, error)

	// Close releases the underlying connection.
	Close() error
}
