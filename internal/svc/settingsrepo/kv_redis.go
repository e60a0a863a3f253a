package settingsrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/yusufsyaifudin/release/pkg/validator"
)

type RedisKVConfig struct {
	DB     redis.UniversalClient `validate:"required"`
	Prefix string
}

// RedisKV stores settings as plain redis strings without expiry.
type RedisKV struct {
	Config RedisKVConfig
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(cfg RedisKVConfig) (*RedisKV, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("error validate settings redis: %w", err)
	}

	return &RedisKV{Config: cfg}, nil
}

func (r *RedisKV) key(k string) string {
	if r.Config.Prefix == "" {
		return k
	}

	return r.Config.Prefix + ":" + k
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.Config.DB.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotExist
	}

	if err != nil {
		return nil, fmt.Errorf("error occured on redis: %w", err)
	}

	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.Config.DB.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("error occured on redis: %w", err)
	}

	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	err := r.Config.DB.Del(ctx, r.key(key)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("error occured on redis: %w", err)
	}

	return nil
}
