package controller

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/internal/task"
)

// countingRefresher 只计数，不请求市场
type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(_ context.Context, conn *model.Connection) (*model.Connection, error) {
	r.calls.Add(1)
	return conn, nil
}

func mountSyncRoutes(f *ctlFixture, tm *task.TaskManager) {
	ctl := NewSyncController(tm)
	tasks := f.router.Group("/api/tasks", middleware.JWTAuth())
	tasks.POST("/token-refresh", ctl.TriggerTokenRefresh)
	tasks.POST("/auto-sync", ctl.TriggerAutoSync)
	tasks.GET("/status", ctl.Status)
}

func TestSyncController_TriggerTokenRefresh(t *testing.T) {
	f := setupCtlFixture(t)
	refresher := &countingRefresher{}

	cfg := task.DefaultConfig()
	cfg.AutoSyncEnabled = false
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		ConnRepo:    repository.NewConnectionRepository(f.db),
		ProductRepo: repository.NewProductRepository(f.db),
		Refresher:   refresher,
	}, cfg, nil)
	mountSyncRoutes(f, tm)

	// 一个即将过期，一个还很新
	f.seedConnection(t, model.ConnectionStatusConnected, time.Now().Add(10*time.Minute))
	f.seedConnection(t, model.ConnectionStatusConnected, time.Now().Add(24*time.Hour))

	w, resp := f.do(t, http.MethodPost, "/api/tasks/token-refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["refreshed"])
	assert.Equal(t, float64(0), resp["failed"])
	assert.Equal(t, int32(1), refresher.calls.Load())

	// 自动同步未启用
	w, resp = f.do(t, http.MethodPost, "/api/tasks/auto-sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "task_disabled", resp["code"])

	w, resp = f.do(t, http.MethodGet, "/api/tasks/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"token_refresh": true, "auto_sync": false}, resp["tasks"])
}

func TestSyncController_TriggerAutoSync(t *testing.T) {
	f := setupCtlFixture(t)

	cfg := task.DefaultConfig()
	cfg.TokenEnabled = false
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		ConnRepo:    repository.NewConnectionRepository(f.db),
		ProductRepo: repository.NewProductRepository(f.db),
		Importer:    f.imports,
	}, cfg, nil)
	mountSyncRoutes(f, tm)

	w, resp := f.do(t, http.MethodPost, "/api/tasks/auto-sync", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, resp["success"])

	w, resp = f.do(t, http.MethodPost, "/api/tasks/token-refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "task_disabled", resp["code"])
}

func TestSyncController_RequiresAuth(t *testing.T) {
	f := setupCtlFixture(t)
	mountSyncRoutes(f, task.NewTaskManager(&task.TaskManagerDeps{}, task.DefaultConfig(), nil))

	f.token = "not-a-jwt"
	w, _ := f.do(t, http.MethodPost, "/api/tasks/token-refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
