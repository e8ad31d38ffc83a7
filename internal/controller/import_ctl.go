package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/service"
)

// ImportController 商品导入
type ImportController struct {
	importService *service.ImportService
}

func NewImportController(s *service.ImportService) *ImportController {
	return &ImportController{importService: s}
}

// importRequest product-import 请求体
type importRequest struct {
	ConnectionID   int64    `json:"connectionId" binding:"required"`
	SearchQuery    string   `json:"searchQuery"`
	ImportSelected bool     `json:"importSelected"`
	ProductIDs     []string `json:"productIds"`
}

// Import 执行导入
// @Summary 从市场导入商品
// @Description productIds 非空时为精选导入，否则按 searchQuery 搜索 (最多 20 条)
// @Tags Import
// @Accept json
// @Produce json
// @Param body body importRequest true "请求体"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "token 过期"
// @Failure 409 {object} map[string]interface{} "导入进行中"
// @Router /api/product-import [post]
func (ctrl *ImportController) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "connectionId is required")
		return
	}

	res, err := ctrl.importService.RunImport(c.Request.Context(), middleware.GetUserID(c), service.ImportRequest{
		ConnectionID:   req.ConnectionID,
		SearchQuery:    req.SearchQuery,
		ProductIDs:     req.ProductIDs,
		ImportSelected: req.ImportSelected,
		Trigger:        service.TriggerManual,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"products":       res.Products,
		"execution":      res.Execution,
		"imported_count": res.ImportedCount,
	})
}

// ListExecutions 导入历史
// @Summary 导入执行记录
// @Tags Import
// @Param connection_id query int false "连接 ID"
// @Param limit query int false "条数" default(20)
// @Router /api/import-executions [get]
func (ctrl *ImportController) ListExecutions(c *gin.Context) {
	var connectionID int64
	if raw := c.Query("connection_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid connection_id")
			return
		}
		connectionID = id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	execs, err := ctrl.importService.ListExecutions(c.Request.Context(), middleware.GetUserID(c), connectionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "executions": execs})
}
