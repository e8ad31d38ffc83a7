package controller

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/pkg/cache"
)

// apiKeyPrefix 外部写入的 key 与内部 key (oauth_state:, product:) 隔离
const apiKeyPrefix = "api:"

// CacheController 通用缓存接口
type CacheController struct {
	cache *cache.Service
}

func NewCacheController(c *cache.Service) *CacheController {
	return &CacheController{cache: c}
}

func cacheKey(c *gin.Context, key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		badRequest(c, "key is required")
		return "", false
	}
	return apiKeyPrefix + key, true
}

// Get 读取
// @Summary 读取缓存
// @Tags Cache
// @Param key query string true "key"
// @Success 200 {object} map[string]interface{} "cached=false 表示 miss"
// @Router /api/cache [get]
func (ctrl *CacheController) Get(c *gin.Context) {
	key, ok := cacheKey(c, c.Query("key"))
	if !ok {
		return
	}

	raw, hit := ctrl.cache.Get(c.Request.Context(), key)
	if !hit {
		c.JSON(http.StatusOK, gin.H{"success": true, "cached": false, "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cached": true, "data": json.RawMessage(raw)})
}

type cacheSetRequest struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
	TTL  int             `json:"ttl"` // 秒，<=0 使用默认值
}

// Set 写入
// @Summary 写入缓存
// @Tags Cache
// @Accept json
// @Router /api/cache [post]
func (ctrl *CacheController) Set(c *gin.Context) {
	var req cacheSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	key, ok := cacheKey(c, req.Key)
	if !ok {
		return
	}
	if len(req.Data) == 0 {
		badRequest(c, "data is required")
		return
	}

	ttl := time.Duration(req.TTL) * time.Second
	if !ctrl.cache.Set(c.Request.Context(), key, req.Data, ttl) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "cache unavailable",
			"code":    "cache_unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete 删除
// @Summary 删除缓存
// @Tags Cache
// @Param key query string true "key"
// @Router /api/cache [delete]
func (ctrl *CacheController) Delete(c *gin.Context) {
	key, ok := cacheKey(c, c.Query("key"))
	if !ok {
		return
	}
	ctrl.cache.Delete(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Clear 清空
// @Summary 清空缓存
// @Tags Cache
// @Router /api/cache/clear [post]
func (ctrl *CacheController) Clear(c *gin.Context) {
	if err := ctrl.cache.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stats 统计
// @Summary 缓存统计
// @Tags Cache
// @Router /api/cache/stats [get]
func (ctrl *CacheController) Stats(c *gin.Context) {
	stats, err := ctrl.cache.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
