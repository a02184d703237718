package session

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "snackgw:session:"

// RedisKV backs the durable client storage with redis, which is what lets
// a session survive gateway restarts the way localStorage survived page
// reloads.
type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return value, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value string) error {
	return r.rdb.Set(ctx, keyPrefix+key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = keyPrefix + key
	}
	return r.rdb.Del(ctx, prefixed...).Err()
}
