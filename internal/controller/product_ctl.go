package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/service"
)

type ProductController struct {
	productService *service.ProductService
}

func NewProductController(productService *service.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ==================== 查询接口 ====================

// GetProducts 获取商品列表
// @Summary 当前用户已导入的商品
// @Tags Product
// @Param connection_id query int false "连接 ID"
// @Param keyword query string false "标题搜索"
// @Param sync_status query string false "同步状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Router /api/products [get]
func (ctrl *ProductController) GetProducts(c *gin.Context) {
	connectionID, _ := strconv.ParseInt(c.Query("connection_id"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	products, total, err := ctrl.productService.List(c.Request.Context(), middleware.GetUserID(c), service.ProductListFilter{
		ConnectionID: connectionID,
		Keyword:      c.Query("keyword"),
		SyncStatus:   c.Query("sync_status"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      products,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetProduct 获取商品详情 (店铺前台，走缓存)
// @Summary 获取单个商品详情
// @Tags Product
// @Param id path int true "商品ID"
// @Router /api/products/{id} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := ctrl.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

// ==================== 编辑接口 ====================

type markupRequest struct {
	MarkupType  string   `json:"markup_type" binding:"required"`
	MarkupValue *float64 `json:"markup_value" binding:"required"`
}

// UpdateMarkup 修改加价
// @Summary 修改加价并重算售价
// @Tags Product
// @Param id path int true "商品ID"
// @Router /api/products/{id}/markup [put]
func (ctrl *ProductController) UpdateMarkup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req markupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "markup_type and markup_value are required")
		return
	}

	p, err := ctrl.productService.UpdateMarkup(c.Request.Context(), middleware.GetUserID(c), id, req.MarkupType, *req.MarkupValue)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

type autoSyncRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoSync 开关自动同步
// @Summary 开关自动同步
// @Tags Product
// @Param id path int true "商品ID"
// @Router /api/products/{id}/auto-sync [put]
func (ctrl *ProductController) SetAutoSync(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req autoSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled is required")
		return
	}

	p, err := ctrl.productService.SetAutoSync(c.Request.Context(), middleware.GetUserID(c), id, *req.Enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}
