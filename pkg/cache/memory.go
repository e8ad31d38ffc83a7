package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultTTL           = 5 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// memoryItem 内部结构，包含值和绝对过期时间
type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 进程内 TTL 缓存
// 读取时懒删除过期条目，另有定时清扫防止内存无限增长
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem

	now           func() time.Time
	defaultTTL    time.Duration
	sweepInterval time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

// MemoryOption 构造选项
type MemoryOption func(*MemoryStore)

// WithClock 注入时钟 (测试用)
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithDefaultTTL ttl<=0 时使用的过期时长
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithSweepInterval 定时清扫间隔
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// NewMemoryStore 创建内存缓存
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items:         make(map[string]memoryItem),
		now:           time.Now,
		defaultTTL:    defaultTTL,
		sweepInterval: defaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get 获取缓存，过期条目视为 miss 并删除
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	s.mu.Lock()
	item, ok := s.items[key]
	if ok && !s.now().Before(item.expiresAt) {
		delete(s.items, key) // 懒删除
		s.evictions.Add(1)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return item.value, true, nil
}

// Set 写入缓存，ttl<=0 使用默认过期时长
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	s.items[key] = memoryItem{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Clear 清空全部条目
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]memoryItem)
	s.mu.Unlock()
	return nil
}

// Stats 统计信息，Entries 包含尚未清扫的过期条目
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	n := len(s.items)
	s.mu.Unlock()

	return Stats{
		Backend:   "memory",
		Entries:   int64(n),
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}, nil
}

// Sweep 清除所有已过期条目，返回清除数量
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	s.evictions.Add(int64(removed))
	return removed
}

// Start 启动后台定时清扫，ctx 取消或 Close 后退出
func (s *MemoryStore) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Close 停止后台清扫
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
