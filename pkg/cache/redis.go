package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisStore 基于 Redis 的远程缓存，多实例部署时共享
// 所有 key 统一加前缀，Clear 只删除本前缀下的 key
type RedisStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore 通过 redis:// URL 创建
func NewRedisStore(redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("解析 REDIS_URL 失败: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opt), prefix, ttl), nil
}

// NewRedisStoreWithClient 复用已有 client
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, defaultTTL: ttl}
}

// Ping 连通性检查
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.hits.Add(1)
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Clear 按前缀 SCAN 后批量删除
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.scan(ctx, func(keys []string) error {
		return s.client.Del(ctx, keys...).Err()
	})
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var entries int64
	err := s.scan(ctx, func(keys []string) error {
		entries += int64(len(keys))
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend: "redis",
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
