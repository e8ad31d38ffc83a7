package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/pkg/events"
)

// ==================== 测试辅助 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err = db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func seedConnection(t *testing.T, db *gorm.DB, marketplace, status string, expiresAt time.Time) *model.Connection {
	t.Helper()
	conn := &model.Connection{
		UserID:       "user-1",
		Marketplace:  marketplace,
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    expiresAt,
		Status:       status,
	}
	if err := db.Create(conn).Error; err != nil {
		t.Fatalf("创建连接失败: %v", err)
	}
	return conn
}

// ==================== 假适配器 ====================

const fakeMarketplace = "fakemkt"

// fakeAdapter 记录调用次数，按 id 返回预置数据
type fakeAdapter struct {
	mu       sync.Mutex
	items    map[string]map[string]interface{}
	searchFn func(q SearchQuery) (*SearchResult, error)
	failIDs  map[string]bool

	searchCalls atomic.Int32
	fetchCalls  atomic.Int32
	fetchTimes  []time.Time
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		items:   make(map[string]map[string]interface{}),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeAdapter) put(id, title string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = map[string]interface{}{
		"title":    title,
		"price":    price,
		"currency": "BRL",
		"stock":    float64(3),
		"images":   []interface{}{"https://img/" + id + "-1.jpg", "https://img/" + id + "-2.jpg"},
	}
}

func (f *fakeAdapter) networkCalls() int {
	return int(f.searchCalls.Load() + f.fetchCalls.Load())
}

func (f *fakeAdapter) Name() string { return fakeMarketplace }

func (f *fakeAdapter) OAuthEndpoint() oauth2.Endpoint { return oauth2.Endpoint{} }

func (f *fakeAdapter) Search(_ context.Context, q SearchQuery) (*SearchResult, error) {
	f.searchCalls.Add(1)
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return &SearchResult{}, nil
}

func (f *fakeAdapter) FetchByID(_ context.Context, id, _ string) (*RawProduct, error) {
	f.fetchCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchTimes = append(f.fetchTimes, time.Now())

	if f.failIDs[id] {
		return nil, &MarketplaceFetchError{Marketplace: fakeMarketplace, ItemID: id, StatusCode: 404}
	}
	item, ok := f.items[id]
	if !ok {
		return nil, &MarketplaceFetchError{Marketplace: fakeMarketplace, ItemID: id, StatusCode: 404}
	}
	// 复制一份，避免测试中修改影响已返回的数据
	cp := make(map[string]interface{}, len(item))
	for k, v := range item {
		cp[k] = v
	}
	return &RawProduct{ID: id, Payload: cp}, nil
}

func (f *fakeAdapter) Normalize(raw *RawProduct, conn *model.Connection, now time.Time) (*model.MarketplaceProduct, error) {
	return (&stubAdapter{name: fakeMarketplace}).Normalize(raw, conn, now)
}

func (f *fakeAdapter) VerifyCredentials(context.Context, map[string]string) error { return nil }

// ==================== 事件记录 ====================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
