package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront_hub_202610/internal/repository"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：令牌保活、商品自动同步
type TaskManager struct {
	tokenTask    *TokenTask
	autoSyncTask *AutoSyncTask
	logger       *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	ConnRepo    repository.ConnectionRepository
	ProductRepo repository.ProductRepository

	Refresher TokenRefresher
	Importer  Importer
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	TokenEnabled     bool
	TokenSpec        string
	TokenWindow      time.Duration
	TokenConcurrency int

	AutoSyncEnabled     bool
	AutoSyncSpec        string
	AutoSyncConcurrency int
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		TokenEnabled:     true,
		TokenSpec:        "0 0/30 * * * *",
		TokenWindow:      time.Hour,
		TokenConcurrency: 10,

		AutoSyncEnabled:     true,
		AutoSyncSpec:        "0 0 * * * *",
		AutoSyncConcurrency: 3,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig, logger *zap.Logger) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger.Named("task_manager")}

	if cfg.TokenEnabled && deps.Refresher != nil {
		tm.tokenTask = NewTokenTask(deps.ConnRepo, deps.Refresher, cfg.TokenSpec, cfg.TokenWindow, logger)
		tm.tokenTask.SetConcurrency(cfg.TokenConcurrency, 50*time.Millisecond)
	}

	if cfg.AutoSyncEnabled && deps.Importer != nil {
		tm.autoSyncTask = NewAutoSyncTask(deps.ConnRepo, deps.ProductRepo, deps.Importer, cfg.AutoSyncSpec, logger)
		tm.autoSyncTask.SetConcurrency(cfg.AutoSyncConcurrency, 300*time.Millisecond)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	if tm.tokenTask != nil {
		if err := tm.tokenTask.Start(); err != nil {
			return err
		}
	}
	if tm.autoSyncTask != nil {
		if err := tm.autoSyncTask.Start(); err != nil {
			return err
		}
	}
	tm.logger.Info("background tasks started", zap.Any("status", tm.Status()))
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
	if tm.autoSyncTask != nil {
		tm.autoSyncTask.Stop()
	}
	tm.logger.Info("background tasks stopped")
}

// ==================== 手动触发接口 ====================

// TriggerTokenRefresh 立即执行一轮令牌刷新
func (tm *TaskManager) TriggerTokenRefresh(ctx context.Context) (int, int, error) {
	if tm.tokenTask == nil {
		return 0, 0, ErrTaskDisabled
	}
	refreshed, failed := tm.tokenTask.RunOnce(ctx)
	return refreshed, failed, nil
}

// TriggerAutoSync 异步触发一轮自动同步
func (tm *TaskManager) TriggerAutoSync() error {
	if tm.autoSyncTask == nil {
		return ErrTaskDisabled
	}
	tm.autoSyncTask.SyncAllNow()
	return nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"token_refresh": tm.tokenTask != nil,
		"auto_sync":     tm.autoSyncTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
