package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/datatypes"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/model"
)

// stubAdapter 尚未接入的市场
// OAuth 端点已配置，可以完成授权；搜索与拉取返回 ErrNotImplemented
type stubAdapter struct {
	name     string
	endpoint oauth2.Endpoint
}

// NewAmazonAdapter Amazon SP-API (Login with Amazon)
func NewAmazonAdapter() MarketplaceAdapter {
	return &stubAdapter{
		name: config.MarketplaceAmazon,
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://sellercentral.amazon.com/apps/authorize/consent",
			TokenURL:  "https://api.amazon.com/auth/o2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// NewShopeeAdapter Shopee Open Platform
func NewShopeeAdapter() MarketplaceAdapter {
	return &stubAdapter{
		name: config.MarketplaceShopee,
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://partner.shopeemobile.com/api/v2/shop/auth_partner",
			TokenURL:  "https://partner.shopeemobile.com/api/v2/auth/token/get",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) OAuthEndpoint() oauth2.Endpoint { return a.endpoint }

func (a *stubAdapter) Search(_ context.Context, _ SearchQuery) (*SearchResult, error) {
	return nil, &MarketplaceFetchError{Marketplace: a.name, Err: ErrNotImplemented}
}

func (a *stubAdapter) FetchByID(_ context.Context, id, _ string) (*RawProduct, error) {
	return nil, &MarketplaceFetchError{Marketplace: a.name, ItemID: id, Err: ErrNotImplemented}
}

func (a *stubAdapter) VerifyCredentials(_ context.Context, credentials map[string]string) error {
	if credentials["client_id"] == "" || credentials["client_secret"] == "" {
		return ErrMissingCredential
	}
	return fmt.Errorf("%s: %w", a.name, ErrNotImplemented)
}

// Normalize 通用 map 结构映射
// key: id, title, description, price, currency, stock, condition, images, url
func (a *stubAdapter) Normalize(raw *RawProduct, conn *model.Connection, now time.Time) (*model.MarketplaceProduct, error) {
	m, ok := raw.Payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload %T for %s", a.name, raw.Payload, raw.ID)
	}

	currency := stringField(m, "currency")
	price, _ := m["price"].(float64)

	p := newNormalizedProduct(conn, a.name, raw.ID, price, currency, now)
	p.Title = stringField(m, "title")
	p.Description = stringField(m, "description")
	p.Condition = stringField(m, "condition")
	p.SourceURL = stringField(m, "url")
	if stock, ok := m["stock"].(float64); ok {
		p.StockQuantity = int(stock)
	}

	if list, ok := m["images"].([]interface{}); ok {
		images := make(datatypes.JSONSlice[string], 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				images = append(images, s)
			}
		}
		p.Images = images
	}
	return p, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
