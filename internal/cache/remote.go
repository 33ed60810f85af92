package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Remote is the optional second cache tier. Implementations store serialized
// values; the Store handles encoding.
type Remote interface {
	Get(ctx context.Context, category, key string) ([]byte, bool, error)
	Set(ctx context.Context, category, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, category, key string) error
	Invalidate(ctx context.Context, category, prefix string) error
}

// RedisRemote backs the remote tier with Redis. Keys are namespaced as
// sowcache:{category}:{key} so prefix invalidation maps onto SCAN+DEL.
type RedisRemote struct {
	client *redis.Client
}

const redisKeyPrefix = "sowcache:"

func NewRedisRemote(url string) (*RedisRemote, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisRemote{client: client}, nil
}

// NewRedisRemoteFromClient wraps an existing client, used by tests.
func NewRedisRemoteFromClient(client *redis.Client) *RedisRemote {
	return &RedisRemote{client: client}
}

func (r *RedisRemote) redisKey(category, key string) string {
	return redisKeyPrefix + category + ":" + key
}

func (r *RedisRemote) Get(ctx context.Context, category, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.redisKey(category, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisRemote) Set(ctx context.Context, category, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.redisKey(category, key), value, ttl).Err()
}

func (r *RedisRemote) Delete(ctx context.Context, category, key string) error {
	return r.client.Del(ctx, r.redisKey(category, key)).Err()
}

func (r *RedisRemote) Invalidate(ctx context.Context, category, prefix string) error {
	pattern := r.redisKey(category, "") + "*"
	if prefix != "*" {
		pattern = r.redisKey(category, prefix) + "*"
	}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *RedisRemote) Close() error {
	return r.client.Close()
}
