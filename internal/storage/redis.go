package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on a Redis server, one command per primitive.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// OpenRedis connects to Redis and verifies the connection with a PING.
func OpenRedis(ctx context.Context, opts *redis.Options) (*RedisKV, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	slog.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisKV{client: client}, nil
}

// Close closes the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// Get runs GET; redis.Nil becomes ErrNotFound.
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting key %q: %w", key, err)
	}
	return v, nil
}

// Set runs SET without expiry.
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	return nil
}

// SetEX runs SET with EX.
func (r *RedisKV) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting key %q with expiry: %w", key, err)
	}
	return nil
}

// Exists runs EXISTS on a single key.
func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking key %q: %w", key, err)
	}
	return n == 1, nil
}

// MSet runs MSET.
func (r *RedisKV) MSet(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := r.client.MSet(ctx, flatten(pairs)...).Err(); err != nil {
		return fmt.Errorf("setting %d keys: %w", len(pairs), err)
	}
	return nil
}

// MGet runs MGET, mapping nil replies to nil entries.
func (r *RedisKV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	out := make([]*string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("getting %d keys: %w", len(keys), err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = &s
		}
	}
	return out, nil
}

// Expire runs EXPIRE.
func (r *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("expiring key %q: %w", key, err)
	}
	return ok, nil
}

// Del runs DEL.
func (r *RedisKV) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("deleting %d keys: %w", len(keys), err)
	}
	return n, nil
}

// maxTxAttempts bounds how often GetDelMSet retries when the watched key
// changes under it.
const maxTxAttempts = 3

// GetDelMSet watches key, reads it, then deletes it and writes the derived
// pairs in one MULTI/EXEC. A concurrent change to key aborts the EXEC and the
// whole read-and-write is retried.
func (r *RedisKV) GetDelMSet(ctx context.Context, key string, build func(string) map[string]string) (string, error) {
	var value string
	txf := func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		pairs := build(v)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(pairs) > 0 {
				pipe.MSet(ctx, flatten(pairs)...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		value = v
		return nil
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return value, nil
		case errors.Is(err, redis.Nil):
			return "", ErrNotFound
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return "", fmt.Errorf("consuming key %q: %w", key, err)
		}
	}
	return "", fmt.Errorf("consuming key %q: %w", key, redis.TxFailedErr)
}

// flatten turns pairs into the alternating key/value arguments of MSET.
func flatten(pairs map[string]string) []any {
	args := make([]any, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, k, v)
	}
	return args
}
