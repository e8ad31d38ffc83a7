package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/internal/service"
	"storefront_hub_202610/pkg/cache"
)

// ==================== 测试辅助 ====================

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetJWTConfig(&middleware.JWTConfig{SecretKey: "controller-test-secret"})
}

const testMarketplace = "testmkt"

// catalogAdapter 固定目录的假市场
type catalogAdapter struct {
	items map[string]float64
}

func (a *catalogAdapter) Name() string                   { return testMarketplace }
func (a *catalogAdapter) OAuthEndpoint() oauth2.Endpoint { return oauth2.Endpoint{} }

func (a *catalogAdapter) Search(_ context.Context, q service.SearchQuery) (*service.SearchResult, error) {
	res := &service.SearchResult{}
	for id := range a.items {
		res.Records = append(res.Records, service.RawProduct{ID: id})
	}
	res.Total = len(res.Records)
	return res, nil
}

func (a *catalogAdapter) FetchByID(_ context.Context, id, _ string) (*service.RawProduct, error) {
	price, ok := a.items[id]
	if !ok {
		return nil, &service.MarketplaceFetchError{Marketplace: testMarketplace, ItemID: id, StatusCode: http.StatusNotFound}
	}
	return &service.RawProduct{ID: id, Payload: price}, nil
}

func (a *catalogAdapter) Normalize(raw *service.RawProduct, conn *model.Connection, now time.Time) (*model.MarketplaceProduct, error) {
	price := raw.Payload.(float64)
	return &model.MarketplaceProduct{
		ConnectionID:         conn.ID,
		MarketplaceProductID: raw.ID,
		Marketplace:          testMarketplace,
		Title:                "Item " + raw.ID,
		OriginalPrice:        price,
		Price:                price,
		Currency:             "BRL",
		MarkupType:           "percentage",
		LastSyncAt:           &now,
		SyncStatus:           model.SyncStatusCompleted,
	}, nil
}

func (a *catalogAdapter) VerifyCredentials(context.Context, map[string]string) error { return nil }

type ctlFixture struct {
	db      *gorm.DB
	router  *gin.Engine
	token   string
	cache   *cache.Service
	imports *service.ImportService
}

func setupCtlFixture(t *testing.T) *ctlFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	connRepo := repository.NewConnectionRepository(db)
	productRepo := repository.NewProductRepository(db)
	cacheSvc := cache.NewService(cache.NewMemoryStore(), nil)
	adapters := service.NewAdapterRegistry(&catalogAdapter{items: map[string]float64{"A1": 10, "A2": 20}})

	opts := service.DefaultImportOptions()
	opts.RequestDelay = 0
	importSvc := service.NewImportService(connRepo, productRepo, repository.NewImportExecutionRepository(db), adapters, nil, cacheSvc, opts, nil)
	productSvc := service.NewProductService(productRepo, connRepo, cacheSvc, nil)
	authSvc := service.NewAuthService(connRepo, repository.NewCredentialRepository(db), adapters, nil, cacheSvc, nil)
	credSvc := service.NewCredentialService(repository.NewCredentialRepository(db), adapters, nil)

	importCtl := NewImportController(importSvc)
	productCtl := NewProductController(productSvc)
	oauthCtl := NewOAuthController(authSvc)
	credCtl := NewCredentialController(credSvc)
	cacheCtl := NewCacheController(cacheSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	api := r.Group("/api")
	api.GET("/products/:id", productCtl.GetProduct)
	authed := api.Group("", middleware.JWTAuth())
	{
		authed.POST("/marketplace-oauth", oauthCtl.Handle)
		authed.GET("/connections", oauthCtl.ListConnections)
		authed.POST("/product-import", importCtl.Import)
		authed.GET("/import-executions", importCtl.ListExecutions)
		authed.GET("/products", productCtl.GetProducts)
		authed.PUT("/products/:id/markup", productCtl.UpdateMarkup)
		authed.POST("/save-marketplace-credentials", credCtl.Save)
		authed.POST("/test-marketplace-api", credCtl.Test)
		authed.GET("/cache", cacheCtl.Get)
		authed.POST("/cache", cacheCtl.Set)
		authed.DELETE("/cache", cacheCtl.Delete)
		authed.POST("/cache/clear", cacheCtl.Clear)
		authed.GET("/cache/stats", cacheCtl.Stats)
	}

	token, err := middleware.GenerateAccessToken("user-1", "u1@example.com", "authenticated", time.Hour)
	require.NoError(t, err)

	return &ctlFixture{db: db, router: r, token: token, cache: cacheSvc, imports: importSvc}
}

func (f *ctlFixture) seedConnection(t *testing.T, status string, expiresAt time.Time) *model.Connection {
	t.Helper()
	conn := &model.Connection{
		UserID:       "user-1",
		Marketplace:  testMarketplace,
		AccessToken:  "tok",
		RefreshToken: "rt",
		Status:       status,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, f.db.Create(conn).Error)
	return conn
}

func (f *ctlFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

// ==================== 导入接口 ====================

func TestImportEndpoint_Selective(t *testing.T) {
	f := setupCtlFixture(t)
	conn := f.seedConnection(t, model.ConnectionStatusConnected, time.Now().Add(time.Hour))

	w, resp := f.do(t, http.MethodPost, "/api/product-import", gin.H{
		"connectionId":   conn.ID,
		"importSelected": true,
		"productIds":     []string{"A1", "A2", "A1"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(2), resp["imported_count"])
	assert.Len(t, resp["products"], 2)
	exec := resp["execution"].(map[string]interface{})
	assert.Equal(t, "selective", exec["execution_type"])

	w, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/import-executions?connection_id=%d", conn.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["executions"], 1)
}

func TestImportEndpoint_ErrorMapping(t *testing.T) {
	f := setupCtlFixture(t)
	expired := f.seedConnection(t, model.ConnectionStatusConnected, time.Now().Add(-time.Hour))

	inactive := &model.Connection{UserID: "user-1", Marketplace: "other", Status: model.ConnectionStatusError, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, f.db.Create(inactive).Error)

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"缺少 connectionId", gin.H{"searchQuery": "x"}, http.StatusBadRequest, "invalid_request"},
		{"无查询条件", gin.H{"connectionId": expired.ID}, http.StatusBadRequest, "invalid_request"},
		{"token 过期", gin.H{"connectionId": expired.ID, "searchQuery": "x"}, http.StatusUnauthorized, "token_expired"},
		{"连接不存在", gin.H{"connectionId": 999, "searchQuery": "x"}, http.StatusNotFound, "not_found"},
		{"连接不可用", gin.H{"connectionId": inactive.ID, "searchQuery": "x"}, http.StatusConflict, "connection_inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := f.do(t, http.MethodPost, "/api/product-import", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.code, resp["code"])
		})
	}
}

func TestImportEndpoint_RequiresAuth(t *testing.T) {
	f := setupCtlFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/product-import", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== 商品接口 ====================

func TestProductEndpoints(t *testing.T) {
	f := setupCtlFixture(t)
	conn := f.seedConnection(t, model.ConnectionStatusConnected, time.Now().Add(time.Hour))

	res, err := f.imports.RunImport(context.Background(), "user-1", service.ImportRequest{ConnectionID: conn.ID, ProductIDs: []string{"A1"}})
	require.NoError(t, err)
	id := res.Products[0].ID

	w, resp := f.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])

	w, resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/markup", id), gin.H{"markup_type": "flat", "markup_value": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 15.0, resp["data"].(map[string]interface{})["price"])

	w, resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/markup", id), gin.H{"markup_type": "weird", "markup_value": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", resp["code"])

	w, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flat", resp["data"].(map[string]interface{})["markup_type"])

	w, _ = f.do(t, http.MethodGet, "/api/products/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/products/4242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp["code"])
}

// ==================== 授权接口 ====================

func TestOAuthEndpoint_Validation(t *testing.T) {
	f := setupCtlFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/marketplace-oauth", gin.H{"marketplace": testMarketplace, "action": "dance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "unknown action")

	w, resp = f.do(t, http.MethodPost, "/api/marketplace-oauth", gin.H{"marketplace": "ebay", "action": "exchange_code", "code": "c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_marketplace", resp["code"])

	w, _ = f.do(t, http.MethodPost, "/api/marketplace-oauth", gin.H{"marketplace": testMarketplace, "action": "refresh_token"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["connections"])
}

// ==================== 凭证接口 ====================

func TestCredentialEndpoints(t *testing.T) {
	f := setupCtlFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/save-marketplace-credentials", gin.H{
		"marketplace": testMarketplace,
		"credentials": gin.H{"client_id": "id", "client_secret": "secret"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"TESTMKT_CLIENT_ID", "TESTMKT_CLIENT_SECRET"}, resp["secretNames"])

	w, resp = f.do(t, http.MethodPost, "/api/save-marketplace-credentials", gin.H{
		"marketplace": testMarketplace,
		"credentials": gin.H{"client_id": "id"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", resp["code"])

	w, resp = f.do(t, http.MethodPost, "/api/test-marketplace-api", gin.H{
		"marketplace": testMarketplace,
		"credentials": gin.H{"client_id": "id", "client_secret": "secret"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
}
