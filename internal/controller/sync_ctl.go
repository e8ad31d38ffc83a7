package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/task"
)

// SyncController 后台任务手动触发
type SyncController struct {
	taskManager *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(taskManager *task.TaskManager) *SyncController {
	return &SyncController{taskManager: taskManager}
}

// ==================== Handler 实现 ====================

// TriggerTokenRefresh 立即刷新即将过期的令牌
// @Summary 手动执行一轮令牌保活
// @Tags Tasks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "任务未启用"
// @Router /api/tasks/token-refresh [post]
func (ctrl *SyncController) TriggerTokenRefresh(c *gin.Context) {
	refreshed, failed, err := ctrl.taskManager.TriggerTokenRefresh(c.Request.Context())
	if err != nil {
		writeTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"refreshed": refreshed,
		"failed":    failed,
	})
}

// TriggerAutoSync 启动一轮自动同步
// @Summary 手动触发商品自动同步 (异步)
// @Tags Tasks
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "任务未启用"
// @Router /api/tasks/auto-sync [post]
func (ctrl *SyncController) TriggerAutoSync(c *gin.Context) {
	if err := ctrl.taskManager.TriggerAutoSync(); err != nil {
		writeTaskError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "auto sync started",
	})
}

// Status 任务启用状态
// @Summary 后台任务状态
// @Tags Tasks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/tasks/status [get]
func (ctrl *SyncController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   ctrl.taskManager.Status(),
	})
}

func writeTaskError(c *gin.Context, err error) {
	if errors.Is(err, task.ErrTaskDisabled) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "task_disabled",
		})
		return
	}
	writeError(c, err)
}
