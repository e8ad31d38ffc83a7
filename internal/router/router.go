package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_hub_202610/internal/controller"
	"storefront_hub_202610/internal/middleware"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	OAuth      *controller.OAuthController
	Import     *controller.ImportController
	Product    *controller.ProductController
	Credential *controller.CredentialController
	Cache      *controller.CacheController
	Sync       *controller.SyncController
}

// Options 路由选项
type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger
	// HealthCheck 为空时 /healthz 直接返回 ok
	HealthCheck func(ctx context.Context) error
}

// New 创建 gin 引擎并注册所有路由
func New(opts Options, ctls Controllers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(opts.Logger), middleware.RequestLogger(opts.Logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		if opts.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	InitRoutes(r, ctls)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls Controllers) {
	api := r.Group("/api")

	// 1. 无需登录
	{
		// GET /api/oauth/callback 浏览器回调，用户身份来自 state
		api.GET("/oauth/callback", ctls.OAuth.Callback)

		// GET /api/products/:id 店铺前台读取
		api.GET("/products/:id", middleware.OptionalAuth(), ctls.Product.GetProduct)
	}

	// 2. 需要登录
	authed := api.Group("", middleware.JWTAuth(), middleware.AuditContext())
	{
		// 授权与连接
		authed.POST("/marketplace-oauth", ctls.OAuth.Handle)
		authed.GET("/connections", ctls.OAuth.ListConnections)
		authed.POST("/connections/:id/disconnect", ctls.OAuth.Disconnect)

		// 导入
		authed.POST("/product-import", ctls.Import.Import)
		authed.GET("/import-executions", ctls.Import.ListExecutions)

		// 商品
		products := authed.Group("/products")
		{
			products.GET("", ctls.Product.GetProducts)
			products.PUT("/:id/markup", ctls.Product.UpdateMarkup)
			products.PUT("/:id/auto-sync", ctls.Product.SetAutoSync)
		}

		// 应用凭证
		authed.POST("/save-marketplace-credentials", ctls.Credential.Save)
		authed.POST("/test-marketplace-api", ctls.Credential.Test)

		// 通用缓存
		cacheGroup := authed.Group("/cache")
		{
			cacheGroup.GET("", ctls.Cache.Get)
			cacheGroup.POST("", ctls.Cache.Set)
			cacheGroup.DELETE("", ctls.Cache.Delete)
			cacheGroup.POST("/clear", ctls.Cache.Clear)
			cacheGroup.GET("/stats", ctls.Cache.Stats)
		}

		// 后台任务手动触发
		tasks := authed.Group("/tasks")
		{
			tasks.POST("/token-refresh", ctls.Sync.TriggerTokenRefresh)
			tasks.POST("/auto-sync", ctls.Sync.TriggerAutoSync)
			tasks.GET("/status", ctls.Sync.Status)
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", "apikey", "x-client-info"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
