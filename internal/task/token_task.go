package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
)

// TokenRefresher 令牌刷新能力，由 AuthService 实现
type TokenRefresher interface {
	Refresh(ctx context.Context, conn *model.Connection) (*model.Connection, error)
}

// TokenTask 令牌保活任务
// 在 access token 过期前主动刷新，刷新失败的连接由 AuthService 标记为 error
type TokenTask struct {
	connRepo  repository.ConnectionRepository
	refresher TokenRefresher
	cron      *cron.Cron
	logger    *zap.Logger
	now       func() time.Time

	spec   string
	window time.Duration // 提前刷新的时间窗口

	// 控制并发刷新的数量，避免触发提供方限流
	concurrencyLimit int
	sleepTime        time.Duration
}

// NewTokenTask 创建令牌保活任务
func NewTokenTask(connRepo repository.ConnectionRepository, refresher TokenRefresher, spec string, window time.Duration, logger *zap.Logger) *TokenTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = "0 0/30 * * * *"
	}
	if window <= 0 {
		window = time.Hour
	}
	return &TokenTask{
		connRepo:         connRepo,
		refresher:        refresher,
		cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		logger:           logger.Named("token_task"),
		now:              time.Now,
		spec:             spec,
		window:           window,
		concurrencyLimit: 10,
		sleepTime:        50 * time.Millisecond, // 平滑波峰
	}
}

// SetConcurrency 设置并发参数
func (t *TokenTask) SetConcurrency(limit int, sleep time.Duration) {
	if limit > 0 {
		t.concurrencyLimit = limit
	}
	t.sleepTime = sleep
}

// Start 启动定时任务
func (t *TokenTask) Start() error {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		t.logger.Info("running initial token check")
		t.RunOnce(ctx)
	}()

	if _, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		t.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("无法启动 Token 定时任务: %w", err)
	}

	t.cron.Start()
	t.logger.Info("token refresh task started", zap.String("spec", t.spec), zap.Duration("window", t.window))
	return nil
}

// Stop 停止任务，等待正在执行的任务结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("token refresh task stopped")
}

// RunOnce 刷新即将过期的连接，返回成功与失败的数量
func (t *TokenTask) RunOnce(ctx context.Context) (refreshed, failed int) {
	conns, err := t.connRepo.FindExpiring(ctx, t.now().Add(t.window))
	if err != nil {
		t.logger.Error("query expiring connections failed", zap.Error(err))
		return 0, 0
	}
	if len(conns) == 0 {
		return 0, 0
	}

	// 1. 信号量，容量即为并发上限
	sem := make(chan struct{}, t.concurrencyLimit)
	var (
		wg      sync.WaitGroup
		okCount atomic.Int32
		errCnt  atomic.Int32
	)

	t.logger.Info("refreshing tokens", zap.Int("connections", len(conns)), zap.Int("concurrency", t.concurrencyLimit))

	for i := range conns {
		// 2. 超时检查
		select {
		case <-ctx.Done():
			t.logger.Warn("token refresh round timed out")
			wg.Wait()
			return int(okCount.Load()), int(errCnt.Load())
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		if t.sleepTime > 0 {
			time.Sleep(t.sleepTime)
		}

		go func(conn model.Connection) {
			defer wg.Done()
			defer func() { <-sem }()

			// 3. 失败只记录，不中断其他连接
			if _, err := t.refresher.Refresh(ctx, &conn); err != nil {
				errCnt.Add(1)
				t.logger.Warn("token refresh failed",
					zap.Int64("connection_id", conn.ID),
					zap.String("marketplace", conn.Marketplace),
					zap.Error(err),
				)
				return
			}
			okCount.Add(1)
		}(conns[i])
	}

	// 4. 等待所有 goroutine 完成
	wg.Wait()
	refreshed, failed = int(okCount.Load()), int(errCnt.Load())
	t.logger.Info("token refresh round finished", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	return refreshed, failed
}
