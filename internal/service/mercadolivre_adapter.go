package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/pkg/mercadolivre"
	"storefront_hub_202610/pkg/net"
)

// MercadoLivreAdapter Mercado Livre 参考实现
type MercadoLivreAdapter struct {
	client   *resty.Client
	cfg      config.MarketplaceConfig
	authURL  string
	tokenURL string

	// 默认开启，FetchByID 额外请求 /items/{id}/description
	withDescription bool
}

// MercadoLivreOption 构造选项
type MercadoLivreOption func(*MercadoLivreAdapter)

// WithMercadoLivreBaseURL 替换 API 地址 (测试或代理网关)
func WithMercadoLivreBaseURL(baseURL string) MercadoLivreOption {
	return func(a *MercadoLivreAdapter) {
		a.client.SetBaseURL(baseURL)
		a.tokenURL = strings.TrimRight(baseURL, "/") + "/oauth/token"
	}
}

// WithItemDescription 是否在 FetchByID 时补充商品描述
func WithItemDescription(enabled bool) MercadoLivreOption {
	return func(a *MercadoLivreAdapter) { a.withDescription = enabled }
}

// NewMercadoLivreAdapter 创建适配器
func NewMercadoLivreAdapter(cfg config.MarketplaceConfig, opts ...MercadoLivreOption) *MercadoLivreAdapter {
	a := &MercadoLivreAdapter{
		client:   net.NewRestClient(net.DefaultClientOptions(mercadolivre.APIBaseURL)),
		cfg:      cfg,
		authURL:  mercadolivre.AuthURL,
		tokenURL: mercadolivre.TokenURL,

		withDescription: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MercadoLivreAdapter) Name() string {
	return config.MarketplaceMercadoLivre
}

func (a *MercadoLivreAdapter) OAuthEndpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   a.authURL,
		TokenURL:  a.tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Search GET /sites/{site_id}/search?q=&limit=
func (a *MercadoLivreAdapter) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	limit := q.Limit
	if limit <= 0 || limit > mercadolivre.MaxSearchPage {
		limit = mercadolivre.MaxSearchPage
	}
	site := a.siteID(q.Region)

	var body mercadolivre.SearchResponse
	resp, err := net.BuildAuthorizedRequest(ctx, a.client, q.AccessToken).
		SetPathParam("site", site).
		SetQueryParams(map[string]string{
			"q":     q.Query,
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&body).
		Get("/sites/{site}/search")
	if err := net.CheckResponse(resp, err); err != nil {
		return nil, a.fetchError("", err)
	}

	results := body.Results
	if len(results) > limit {
		results = results[:limit]
	}

	out := &SearchResult{
		Records: make([]RawProduct, 0, len(results)),
		Total:   body.Paging.Total,
	}
	for i := range results {
		out.Records = append(out.Records, RawProduct{ID: results[i].ID, Payload: &results[i]})
	}
	if out.Total < len(out.Records) {
		out.Total = len(out.Records)
	}
	return out, nil
}

// FetchByID GET /items/{id}
func (a *MercadoLivreAdapter) FetchByID(ctx context.Context, id, accessToken string) (*RawProduct, error) {
	var item mercadolivre.Item
	resp, err := net.BuildAuthorizedRequest(ctx, a.client, accessToken).
		SetPathParam("id", id).
		SetResult(&item).
		Get("/items/{id}")
	if err := net.CheckResponse(resp, err); err != nil {
		return nil, a.fetchError(id, err)
	}
	if item.ID == "" {
		item.ID = id
	}

	if a.withDescription {
		var desc mercadolivre.Description
		resp, err = net.BuildAuthorizedRequest(ctx, a.client, accessToken).
			SetPathParam("id", id).
			SetResult(&desc).
			Get("/items/{id}/description")
		// 描述缺失不影响导入
		if net.CheckResponse(resp, err) == nil {
			item.Description = desc.PlainText
		}
	}

	return &RawProduct{ID: item.ID, Payload: &item}, nil
}

// Normalize 将 Item 映射为本地商品
func (a *MercadoLivreAdapter) Normalize(raw *RawProduct, conn *model.Connection, now time.Time) (*model.MarketplaceProduct, error) {
	item, ok := raw.Payload.(*mercadolivre.Item)
	if !ok {
		return nil, fmt.Errorf("mercadolivre: unexpected payload %T for %s", raw.Payload, raw.ID)
	}
	if item.ID == "" {
		return nil, errors.New("mercadolivre: item without id")
	}

	p := newNormalizedProduct(conn, a.Name(), item.ID, item.Price, item.CurrencyID, now)
	p.Title = item.Title
	p.Description = item.Description
	p.StockQuantity = item.AvailableQuantity
	p.Condition = item.Condition
	p.SourceURL = item.Permalink

	if item.CategoryID != "" {
		p.CategoryIDs = datatypes.JSONSlice[string]{item.CategoryID}
	}

	images := make(datatypes.JSONSlice[string], 0, len(item.Pictures))
	for _, pic := range item.Pictures {
		if pic.SecureURL != "" {
			images = append(images, pic.SecureURL)
		} else if pic.URL != "" {
			images = append(images, pic.URL)
		}
	}
	if len(images) == 0 && item.Thumbnail != "" {
		images = append(images, item.Thumbnail)
	}
	p.Images = images

	attrs := datatypes.JSONMap{
		"brand": item.AttributeValue("BRAND"),
		"model": item.AttributeValue("MODEL"),
		"gtin":  item.AttributeValue("GTIN"),
		"shipping": map[string]interface{}{
			"free_shipping": item.Shipping.FreeShipping,
			"mode":          item.Shipping.Mode,
			"logistic_type": item.Shipping.LogisticType,
		},
		"seller": map[string]interface{}{
			"id": item.SellerID,
		},
		"sold_quantity": item.SoldQuantity,
		"status":        item.Status,
	}
	if item.OriginalPrice != nil {
		attrs["list_price"] = *item.OriginalPrice
	}
	if item.Warranty != "" {
		attrs["warranty"] = item.Warranty
	}
	p.Attributes = attrs

	return p, nil
}

// VerifyCredentials 用 client_credentials 换一次应用 token，验证 client id/secret
func (a *MercadoLivreAdapter) VerifyCredentials(ctx context.Context, credentials map[string]string) error {
	clientID, clientSecret := credentials["client_id"], credentials["client_secret"]
	if clientID == "" || clientSecret == "" {
		return ErrMissingCredential
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	var token mercadolivre.TokenResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetResult(&token).
		Post(a.tokenURL)
	if err := net.CheckResponse(resp, err); err != nil {
		return fmt.Errorf("mercadolivre credential check failed: %w", err)
	}
	if token.AccessToken == "" {
		return errors.New("mercadolivre credential check failed: empty access token")
	}
	return nil
}

func (a *MercadoLivreAdapter) siteID(region string) string {
	if region != "" {
		return region
	}
	if a.cfg.Region != "" {
		return a.cfg.Region
	}
	return mercadolivre.DefaultSiteID
}

func (a *MercadoLivreAdapter) fetchError(itemID string, err error) error {
	fe := &MarketplaceFetchError{Marketplace: a.Name(), ItemID: itemID, Err: err}
	var httpErr *net.HTTPError
	if errors.As(err, &httpErr) {
		fe.StatusCode = httpErr.StatusCode
	}
	return fe
}
