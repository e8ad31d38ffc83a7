package model

import (
	"time"

	"gorm.io/datatypes"
)

// 商品同步状态
const (
	SyncStatusPending   = "pending"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// MarketplaceProduct 远端市场商品的本地镜像
// (connection_id, marketplace_product_id) 唯一，导入时按此键 upsert
type MarketplaceProduct struct {
	BaseModel

	ConnectionID         int64  `gorm:"not null;uniqueIndex:idx_conn_mkt_product,priority:1" json:"connection_id"`
	MarketplaceProductID string `gorm:"size:64;not null;uniqueIndex:idx_conn_mkt_product,priority:2" json:"marketplace_product_id"`
	Marketplace          string `gorm:"size:32;index" json:"marketplace"`

	Title       string `gorm:"size:512" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// 价格: Price 为加价后的本地售价，OriginalPrice 为来源价
	Price         float64 `gorm:"type:decimal(14,2)" json:"price"`
	OriginalPrice float64 `gorm:"type:decimal(14,2)" json:"original_price"`
	Currency      string  `gorm:"size:3" json:"currency"`

	// 加价配置，首次写入后只允许显式修改
	MarkupType  string  `gorm:"size:20;default:percentage" json:"markup_type"`
	MarkupValue float64 `gorm:"type:decimal(10,4);default:0" json:"markup_value"`

	StockQuantity int    `json:"stock_quantity"`
	Condition     string `gorm:"size:32" json:"condition"`

	CategoryIDs datatypes.JSONSlice[string] `json:"category_ids"`
	Images      datatypes.JSONSlice[string] `json:"images"` // 有序
	Attributes  datatypes.JSONMap           `json:"attributes"`
	SourceURL   string                      `gorm:"size:1024" json:"source_url"`

	// 同步元数据
	LastSyncAt      *time.Time `json:"last_sync_at"`
	SyncStatus      string     `gorm:"size:20;default:pending;index" json:"sync_status"`
	AutoSyncEnabled bool       `gorm:"default:false;index" json:"auto_sync_enabled"`
}

func (MarketplaceProduct) TableName() string {
	return "marketplace_products"
}
