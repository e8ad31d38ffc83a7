package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/pkg/mercadolivre"
	"storefront_hub_202610/pkg/utils"
)

func newMercadoLivreTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/sites/MLB/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]interface{}{
			"site_id": "MLB",
			"query":   r.URL.Query().Get("q"),
			"paging":  map[string]interface{}{"total": 1234, "limit": 2},
			"results": []map[string]interface{}{
				{"id": "MLB1", "title": "Phone 1", "price": 10.5},
				{"id": "MLB2", "title": "Phone 2", "price": 20},
				{"id": "MLB3", "title": "Phone 3", "price": 30},
			},
		})
	})
	mux.HandleFunc("/items/MLB1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":                 "MLB1",
			"title":              "Smartphone X",
			"seller_id":          777,
			"category_id":        "MLB1055",
			"price":              1999.9,
			"original_price":     2499.0,
			"currency_id":        "BRL",
			"available_quantity": 7,
			"sold_quantity":      42,
			"condition":          "new",
			"permalink":          "https://produto.mercadolivre.com.br/MLB1",
			"thumbnail":          "http://thumb/MLB1.jpg",
			"pictures": []map[string]interface{}{
				{"id": "p1", "url": "http://img/1.jpg", "secure_url": "https://img/1.jpg"},
				{"id": "p2", "url": "http://img/2.jpg"},
			},
			"attributes": []map[string]interface{}{
				{"id": "BRAND", "value_name": "Acme"},
				{"id": "MODEL", "value_name": "X1"},
			},
			"shipping": map[string]interface{}{"free_shipping": true, "mode": "me2"},
			"status":   "active",
		})
	})
	mux.HandleFunc("/items/MLB1/description", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"plain_text": "Great phone"})
	})
	mux.HandleFunc("/items/GONE", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]interface{}{"message": "item not found", "error": "not_found", "status": 404})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestMercadoLivre_SearchRespectsLimit(t *testing.T) {
	srv := newMercadoLivreTestServer(t)
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL))

	res, err := a.Search(context.Background(), SearchQuery{Query: "phone", AccessToken: "tok", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 1234, res.Total)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "MLB1", res.Records[0].ID)
	assert.Equal(t, "MLB2", res.Records[1].ID)
}

func TestMercadoLivre_SearchUnauthorized(t *testing.T) {
	srv := newMercadoLivreTestServer(t)
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL))

	_, err := a.Search(context.Background(), SearchQuery{Query: "phone", AccessToken: "wrong"})
	var fe *MarketplaceFetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusUnauthorized, fe.StatusCode)
	assert.Empty(t, fe.ItemID)
}

func TestMercadoLivre_FetchAndNormalize(t *testing.T) {
	srv := newMercadoLivreTestServer(t)
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL), WithItemDescription(true))

	raw, err := a.FetchByID(context.Background(), "MLB1", "tok")
	require.NoError(t, err)

	conn := &model.Connection{
		Settings: datatypes.JSONMap{
			model.SettingMarkupType:  utils.MarkupPercentage,
			model.SettingMarkupValue: 10.0,
		},
	}
	conn.ID = 9
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	p, err := a.Normalize(raw, conn, now)
	require.NoError(t, err)

	assert.Equal(t, int64(9), p.ConnectionID)
	assert.Equal(t, "MLB1", p.MarketplaceProductID)
	assert.Equal(t, config.MarketplaceMercadoLivre, p.Marketplace)
	assert.Equal(t, "Smartphone X", p.Title)
	assert.Equal(t, "Great phone", p.Description)
	assert.Equal(t, 1999.9, p.OriginalPrice)
	assert.InDelta(t, 2199.89, p.Price, 0.001)
	assert.Equal(t, "BRL", p.Currency)
	assert.Equal(t, 7, p.StockQuantity)
	assert.Equal(t, "new", p.Condition)
	assert.Equal(t, []string{"MLB1055"}, []string(p.CategoryIDs))
	assert.Equal(t, []string{"https://img/1.jpg", "http://img/2.jpg"}, []string(p.Images))
	assert.Equal(t, "Acme", p.Attributes["brand"])
	assert.Equal(t, "X1", p.Attributes["model"])
	assert.Equal(t, 2499.0, p.Attributes["list_price"])
	assert.Equal(t, model.SyncStatusCompleted, p.SyncStatus)
	require.NotNil(t, p.LastSyncAt)
	assert.True(t, p.LastSyncAt.Equal(now))
}

func TestMercadoLivre_DescriptionFetchedByDefault(t *testing.T) {
	srv := newMercadoLivreTestServer(t)

	a := NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL))
	raw, err := a.FetchByID(context.Background(), "MLB1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Great phone", raw.Payload.(*mercadolivre.Item).Description)

	a = NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL), WithItemDescription(false))
	raw, err = a.FetchByID(context.Background(), "MLB1", "tok")
	require.NoError(t, err)
	assert.Empty(t, raw.Payload.(*mercadolivre.Item).Description)
}

func TestDefaultAdapters_FollowConfig(t *testing.T) {
	srv := newMercadoLivreTestServer(t)
	cfg := &config.Config{
		Import:       config.ImportConfig{FetchDescription: true},
		Marketplaces: map[string]config.MarketplaceConfig{config.MarketplaceMercadoLivre: {Region: "MLB"}},
	}

	reg := NewDefaultAdapters(cfg, WithMercadoLivreBaseURL(srv.URL))
	assert.Equal(t, []string{config.MarketplaceAmazon, config.MarketplaceMercadoLivre, config.MarketplaceShopee}, reg.Names())

	a, err := reg.Get(config.MarketplaceMercadoLivre)
	require.NoError(t, err)
	raw, err := a.FetchByID(context.Background(), "MLB1", "tok")
	require.NoError(t, err)

	p, err := a.Normalize(raw, &model.Connection{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Great phone", p.Description)

	cfg.Import.FetchDescription = false
	a, err = NewDefaultAdapters(cfg, WithMercadoLivreBaseURL(srv.URL)).Get(config.MarketplaceMercadoLivre)
	require.NoError(t, err)
	raw, err = a.FetchByID(context.Background(), "MLB1", "tok")
	require.NoError(t, err)
	assert.Empty(t, raw.Payload.(*mercadolivre.Item).Description)
}

func TestMercadoLivre_FetchNotFound(t *testing.T) {
	srv := newMercadoLivreTestServer(t)
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{}, WithMercadoLivreBaseURL(srv.URL))

	_, err := a.FetchByID(context.Background(), "GONE", "tok")
	var fe *MarketplaceFetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "GONE", fe.ItemID)
}

func TestMercadoLivre_NormalizeFallsBackToThumbnail(t *testing.T) {
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{})
	raw := &RawProduct{ID: "MLB9", Payload: &mercadolivre.Item{
		ID:         "MLB9",
		Price:      100,
		CurrencyID: "CLP",
		Thumbnail:  "http://thumb/9.jpg",
	}}

	p, err := a.Normalize(raw, &model.Connection{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://thumb/9.jpg"}, []string(p.Images))
	assert.Equal(t, 100.0, p.Price)
	assert.Equal(t, utils.MarkupPercentage, p.MarkupType)
}

func TestMercadoLivre_NormalizeRejectsForeignPayload(t *testing.T) {
	a := NewMercadoLivreAdapter(config.MarketplaceConfig{})
	_, err := a.Normalize(&RawProduct{ID: "x", Payload: map[string]interface{}{}}, &model.Connection{}, time.Now())
	assert.Error(t, err)
}

func TestMercadoLivre_SiteID(t *testing.T) {
	assert.Equal(t, "MLB", NewMercadoLivreAdapter(config.MarketplaceConfig{}).siteID(""))
	assert.Equal(t, "MLA", NewMercadoLivreAdapter(config.MarketplaceConfig{Region: "MLA"}).siteID(""))
	assert.Equal(t, "MLM", NewMercadoLivreAdapter(config.MarketplaceConfig{Region: "MLA"}).siteID("MLM"))
}

func TestStubAdapters(t *testing.T) {
	for _, a := range []MarketplaceAdapter{NewAmazonAdapter(), NewShopeeAdapter()} {
		t.Run(a.Name(), func(t *testing.T) {
			_, err := a.Search(context.Background(), SearchQuery{Query: "x"})
			assert.ErrorIs(t, err, ErrNotImplemented)

			_, err = a.FetchByID(context.Background(), "1", "tok")
			assert.ErrorIs(t, err, ErrNotImplemented)

			assert.NotEmpty(t, a.OAuthEndpoint().TokenURL)
		})
	}
}

func TestAdapterRegistry(t *testing.T) {
	r := NewAdapterRegistry(NewMercadoLivreAdapter(config.MarketplaceConfig{}), NewAmazonAdapter(), NewShopeeAdapter())
	assert.Equal(t, []string{config.MarketplaceAmazon, config.MarketplaceMercadoLivre, config.MarketplaceShopee}, r.Names())

	_, err := r.Get("ebay")
	var unsupported *UnsupportedMarketplaceError
	assert.ErrorAs(t, err, &unsupported)
}
