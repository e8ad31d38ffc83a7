package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/internal/service"
)

// ==================== AutoSyncTask 商品自动同步 ====================

// Importer 导入能力，由 ImportService 实现
type Importer interface {
	RunImport(ctx context.Context, userID string, req service.ImportRequest) (*service.ImportResult, error)
}

// AutoSyncTask 按连接重新导入开启了自动同步的商品
// 只处理状态为 connected 且 token 未过期的连接，过期连接等待 TokenTask 刷新
type AutoSyncTask struct {
	connRepo    repository.ConnectionRepository
	productRepo repository.ProductRepository
	importer    Importer
	cron        *cron.Cron
	logger      *zap.Logger
	now         func() time.Time

	spec string

	// 并发控制
	concurrencyLimit int
	sleepTime        time.Duration
}

// SyncStats 一轮同步的统计
type SyncStats struct {
	Connections int
	Skipped     int
	Failed      int
	Imported    int
}

// NewAutoSyncTask 创建自动同步任务
func NewAutoSyncTask(
	connRepo repository.ConnectionRepository,
	productRepo repository.ProductRepository,
	importer Importer,
	spec string,
	logger *zap.Logger,
) *AutoSyncTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = "0 0 * * * *"
	}
	return &AutoSyncTask{
		connRepo:         connRepo,
		productRepo:      productRepo,
		importer:         importer,
		cron:             cron.New(cron.WithSeconds()),
		logger:           logger.Named("auto_sync_task"),
		now:              time.Now,
		spec:             spec,
		concurrencyLimit: 3,
		sleepTime:        300 * time.Millisecond,
	}
}

// SetConcurrency 设置并发参数
func (t *AutoSyncTask) SetConcurrency(limit int, sleep time.Duration) {
	if limit > 0 {
		t.concurrencyLimit = limit
	}
	t.sleepTime = sleep
}

// Start 启动定时任务
func (t *AutoSyncTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		t.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("无法启动自动同步任务: %w", err)
	}

	t.cron.Start()
	t.logger.Info("auto sync task started", zap.String("spec", t.spec))
	return nil
}

// Stop 停止任务
func (t *AutoSyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("auto sync task stopped")
}

// SyncAllNow 异步触发一轮同步
func (t *AutoSyncTask) SyncAllNow() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		t.RunOnce(ctx)
	}()
}

// RunOnce 执行一轮同步
func (t *AutoSyncTask) RunOnce(ctx context.Context) SyncStats {
	var stats SyncStats

	conns, err := t.connRepo.ListUsable(ctx, t.now())
	if err != nil {
		t.logger.Error("list usable connections failed", zap.Error(err))
		return stats
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range conns {
		conn := conns[i]
		select {
		case <-ctx.Done():
			t.logger.Warn("auto sync round timed out")
			wg.Wait()
			return stats
		default:
		}

		products, err := t.productRepo.ListAutoSync(ctx, conn.ID)
		if err != nil {
			t.logger.Warn("list auto sync products failed", zap.Int64("connection_id", conn.ID), zap.Error(err))
			continue
		}
		if len(products) == 0 {
			continue
		}
		ids := make([]string, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.MarketplaceProductID)
		}

		sem <- struct{}{}
		wg.Add(1)
		if t.sleepTime > 0 {
			time.Sleep(t.sleepTime)
		}

		go func(connID int64, ids []string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := t.importer.RunImport(ctx, "", service.ImportRequest{
				ConnectionID:   connID,
				ProductIDs:     ids,
				ImportSelected: true,
				Trigger:        service.TriggerAutoSync,
			})

			mu.Lock()
			defer mu.Unlock()
			stats.Connections++

			switch {
			case errors.Is(err, service.ErrImportInProgress):
				// 手动导入正在进行，下一轮再同步
				stats.Skipped++
			case err != nil:
				stats.Failed++
				t.logger.Warn("auto sync failed", zap.Int64("connection_id", connID), zap.Error(err))
			default:
				stats.Imported += res.ImportedCount
			}
		}(conn.ID, ids)
	}

	wg.Wait()
	t.logger.Info("auto sync round finished",
		zap.Int("connections", stats.Connections),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("imported", stats.Imported),
	)
	return stats
}
