package cache

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey key 为空
var ErrEmptyKey = errors.New("cache: empty key")

// Store 键值缓存后端
// 实现必须并发安全；Get 对过期条目返回 miss
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats 缓存统计
type Stats struct {
	Backend   string `json:"backend"`
	Entries   int64  `json:"entries"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
}
