package mercadolivre

// API 地址
const (
	APIBaseURL = "https://api.mercadolibre.com"
	AuthURL    = "https://auth.mercadolivre.com.br/authorization"
	TokenURL   = APIBaseURL + "/oauth/token"

	DefaultSiteID = "MLB"
	MaxSearchPage = 50
)

// SearchResponse GET /sites/{site_id}/search
type SearchResponse struct {
	SiteID  string         `json:"site_id"`
	Query   string         `json:"query"`
	Paging  Paging         `json:"paging"`
	Results []SearchResult `json:"results"`
}

// Paging 分页信息，Total 为搜索命中总数
type Paging struct {
	Total          int `json:"total"`
	PrimaryResults int `json:"primary_results"`
	Offset         int `json:"offset"`
	Limit          int `json:"limit"`
}

// SearchResult 搜索结果条目 (精简字段)
type SearchResult struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	CurrencyID string  `json:"currency_id"`
	Permalink  string  `json:"permalink"`
	Thumbnail  string  `json:"thumbnail"`
}

// Item GET /items/{id}
type Item struct {
	ID                string      `json:"id"`
	SiteID            string      `json:"site_id"`
	Title             string      `json:"title"`
	SellerID          int64       `json:"seller_id"`
	CategoryID        string      `json:"category_id"`
	Price             float64     `json:"price"`
	OriginalPrice     *float64    `json:"original_price"`
	CurrencyID        string      `json:"currency_id"`
	AvailableQuantity int         `json:"available_quantity"`
	SoldQuantity      int         `json:"sold_quantity"`
	Condition         string      `json:"condition"`
	Permalink         string      `json:"permalink"`
	Thumbnail         string      `json:"thumbnail"`
	Pictures          []Picture   `json:"pictures"`
	Attributes        []Attribute `json:"attributes"`
	Shipping          Shipping    `json:"shipping"`
	Status            string      `json:"status"`
	Warranty          string      `json:"warranty"`

	// 由 /items/{id}/description 补充
	Description string `json:"-"`
}

// Picture 商品图片
type Picture struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	Size      string `json:"size"`
}

// Attribute 商品属性 (BRAND / MODEL / GTIN ...)
type Attribute struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ValueID   string `json:"value_id"`
	ValueName string `json:"value_name"`
}

// Shipping 物流信息
type Shipping struct {
	FreeShipping bool     `json:"free_shipping"`
	Mode         string   `json:"mode"`
	LogisticType string   `json:"logistic_type"`
	Tags         []string `json:"tags"`
}

// Description GET /items/{id}/description
type Description struct {
	PlainText string `json:"plain_text"`
	Text      string `json:"text"`
}

// TokenResponse POST /oauth/token
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Status  int      `json:"status"`
	Cause   []string `json:"cause"`
}

// AttributeValue 按属性 ID 取值
func (i *Item) AttributeValue(id string) string {
	for _, a := range i.Attributes {
		if a.ID == id {
			return a.ValueName
		}
	}
	return ""
}
