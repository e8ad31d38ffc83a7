package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"storefront_hub_202610/internal/controller"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 控制器不会被调用，鉴权失败在中间件层返回
func newTestEngine(health func(ctx context.Context) error) *gin.Engine {
	return New(Options{AllowedOrigins: []string{"https://shop.example.com"}, HealthCheck: health}, Controllers{
		OAuth:      &controller.OAuthController{},
		Import:     &controller.ImportController{},
		Product:    &controller.ProductController{},
		Credential: &controller.CredentialController{},
		Cache:      &controller.CacheController{},
		Sync:       &controller.SyncController{},
	})
}

func TestHealthz(t *testing.T) {
	r := newTestEngine(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestEngine(func(context.Context) error { return errors.New("db down") })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestEngine(nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/marketplace-oauth"},
		{http.MethodGet, "/api/connections"},
		{http.MethodPost, "/api/product-import"},
		{http.MethodGet, "/api/import-executions"},
		{http.MethodGet, "/api/products"},
		{http.MethodPut, "/api/products/1/markup"},
		{http.MethodPost, "/api/save-marketplace-credentials"},
		{http.MethodPost, "/api/test-marketplace-api"},
		{http.MethodGet, "/api/cache?key=a"},
		{http.MethodPost, "/api/cache/clear"},
		{http.MethodPost, "/api/tasks/token-refresh"},
		{http.MethodPost, "/api/tasks/auto-sync"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestEngine(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/product-import", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_Wildcard(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowOrigins)
}
