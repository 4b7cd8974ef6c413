package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/investscope/pkg/redis"
)

// Redis stores every key under "<prefix>:kv:". Values never carry a redis TTL;
// expiry is decided by the cache envelope.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix + ":kv:"}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Redis().Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	err := r.client.Redis().Set(ctx, r.prefix+key, value, 0).Err()
	if err == nil {
		return nil
	}
	if isRedisOOM(err) {
		return fmt.Errorf("redis set %s: %w", key, ErrCapacity)
	}
	return fmt.Errorf("redis set %s: %w", key, err)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Redis().Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Redis().Scan(ctx, 0, r.prefix+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Close is a no-op: the connection belongs to pkg/redis.
func (r *Redis) Close() error { return nil }

// maxmemory with noeviction answers writes with "OOM command not allowed ...".
func isRedisOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM")
}
