package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Service 缓存服务
// 业务侧只通过它访问缓存：任何后端错误都记录日志并按 miss 处理，缓存永远不是强依赖
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService 创建缓存服务
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Get 读取原始字节，后端错误按 miss 返回
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed, treat as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return val, ok
}

// Set 写入原始字节，失败只记录日志
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// GetJSON 读取并反序列化到 dst，miss 或任意错误返回 false
func (s *Service) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("cache decode failed, treat as miss", zap.String("key", key), zap.Error(err))
		_ = s.store.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON 序列化后写入
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return s.Set(ctx, key, raw, ttl)
}

// Delete 删除，失败只记录日志
func (s *Service) Delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear 清空缓存，管理接口需要知道结果所以返回错误
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Stats 缓存统计
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}
