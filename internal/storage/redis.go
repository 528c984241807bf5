package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV persists values as plain string keys with a retention TTL that is
// refreshed on every write.
type RedisKV struct {
	client    redis.UniversalClient
	retention time.Duration
	timeout   time.Duration
	log       *slog.Logger
}

func NewRedisKV(client redis.UniversalClient, retention time.Duration, log *slog.Logger) *RedisKV {
	return &RedisKV{
		client:    client,
		retention: retention,
		timeout:   2 * time.Second,
		log:       log,
	}
}

func (s *RedisKV) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.log.Warn("state read failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	return val, true
}

func (s *RedisKV) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, s.retention).Err(); err != nil {
		s.log.Warn("state write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *RedisKV) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn("state delete failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
