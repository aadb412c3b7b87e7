package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisBackend stores one namespace as a Redis hash.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend returns a backend over the hash "<prefix>:<namespace>".
func NewRedisBackend(client *redis.Client, prefix, namespace string) *RedisBackend {
	key := namespace
	if prefix != "" {
		key = prefix + ":" + namespace
	}
	return &RedisBackend{client: client, key: key}
}

// Describe implements Backend.
func (r *RedisBackend) Describe() string { return "redis:" + r.key }

// Load implements Backend.
func (r *RedisBackend) Load(ctx context.Context) (map[string][]byte, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "redis: hgetall %s", r.key)
	}
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out, nil
}

// Save implements Backend.
func (r *RedisBackend) Save(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[string]any, len(entries))
	for k, v := range entries {
		values[k] = string(v)
	}
	if err := r.client.HSet(ctx, r.key, values).Err(); err != nil {
		return eris.Wrapf(err, "redis: hset %s", r.key)
	}
	return nil
}
