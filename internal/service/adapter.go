package service

import (
	"context"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/pkg/utils"
)

// ==================== 适配器能力集 ====================

// RawProduct 适配器返回的原始记录，Payload 为各市场自己的结构
type RawProduct struct {
	ID      string
	Payload interface{}
}

// SearchQuery 搜索参数
type SearchQuery struct {
	Query       string
	AccessToken string
	Limit       int
	Region      string // 站点/区域，为空时使用适配器默认值
}

// SearchResult 搜索结果；Total 为命中总数，可能大于 len(Records)
type SearchResult struct {
	Records []RawProduct
	Total   int
}

// MarketplaceAdapter 市场适配器
// 新增市场只需实现该接口并注册，编排器不感知具体市场
type MarketplaceAdapter interface {
	Name() string
	OAuthEndpoint() oauth2.Endpoint

	// Search 一次 HTTP 调用，结果数不超过 q.Limit
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
	// FetchByID 每个 id 一次 HTTP 调用
	FetchByID(ctx context.Context, id, accessToken string) (*RawProduct, error)
	// Normalize 纯映射，不做任何 IO
	Normalize(raw *RawProduct, conn *model.Connection, now time.Time) (*model.MarketplaceProduct, error)

	// VerifyCredentials 用一组应用凭证验证 API 可用性
	VerifyCredentials(ctx context.Context, credentials map[string]string) error
}

// ==================== 注册表 ====================

// AdapterRegistry 按市场名查找适配器
type AdapterRegistry struct {
	adapters map[string]MarketplaceAdapter
}

// NewAdapterRegistry 创建注册表，同名后注册的覆盖先注册的
func NewAdapterRegistry(adapters ...MarketplaceAdapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[string]MarketplaceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// NewDefaultAdapters 按配置注册所有市场，mlOpts 追加在配置项之后
func NewDefaultAdapters(cfg *config.Config, mlOpts ...MercadoLivreOption) *AdapterRegistry {
	opts := append([]MercadoLivreOption{WithItemDescription(cfg.Import.FetchDescription)}, mlOpts...)
	return NewAdapterRegistry(
		NewMercadoLivreAdapter(cfg.Marketplaces[config.MarketplaceMercadoLivre], opts...),
		NewAmazonAdapter(),
		NewShopeeAdapter(),
	)
}

// Get 未注册时返回 UnsupportedMarketplaceError
func (r *AdapterRegistry) Get(name string) (MarketplaceAdapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, &UnsupportedMarketplaceError{Marketplace: name}
	}
	return a, nil
}

// Names 已注册的市场名 (有序)
func (r *AdapterRegistry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ==================== 归一化公共部分 ====================

// newNormalizedProduct 填充所有市场通用的字段
// 售价按连接上配置的加价方式计算，默认不加价
func newNormalizedProduct(conn *model.Connection, marketplace, id string, originalPrice float64, currency string, now time.Time) *model.MarketplaceProduct {
	markupType := conn.SettingString(model.SettingMarkupType, utils.MarkupPercentage)
	if !utils.ValidMarkupType(markupType) {
		markupType = utils.MarkupPercentage
	}
	markupValue := conn.SettingFloat(model.SettingMarkupValue, 0)

	syncAt := now
	return &model.MarketplaceProduct{
		ConnectionID:         conn.ID,
		MarketplaceProductID: id,
		Marketplace:          marketplace,
		OriginalPrice:        utils.RoundToMinorUnit(originalPrice, currency),
		Currency:             currency,
		MarkupType:           markupType,
		MarkupValue:          markupValue,
		Price:                utils.ApplyMarkup(originalPrice, markupType, markupValue, currency),
		LastSyncAt:           &syncAt,
		SyncStatus:           model.SyncStatusCompleted,
	}
}
