package model

import (
	"time"

	"gorm.io/datatypes"
)

// 连接状态
const (
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusConnected    = "connected"
	ConnectionStatusError        = "error"
)

// settings 中约定的 key
const (
	SettingRegion      = "region"
	SettingSiteID      = "site_id"
	SettingSellerID    = "seller_id"
	SettingScopes      = "scopes"
	SettingMarkupType  = "markup_type"
	SettingMarkupValue = "markup_value"
)

// Connection 用户在某个市场的 OAuth 凭证，(user_id, marketplace) 唯一
type Connection struct {
	BaseModel

	UserID      string `gorm:"size:64;not null;uniqueIndex:idx_conn_user_marketplace,priority:1" json:"user_id"`
	Marketplace string `gorm:"size:32;not null;uniqueIndex:idx_conn_user_marketplace,priority:2" json:"marketplace"`

	// 令牌仅在 connected 期间存在，永不输出到 JSON
	AccessToken  string    `gorm:"type:text" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenType    string    `gorm:"size:32" json:"token_type"`
	Scope        string    `gorm:"type:text" json:"scope"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`

	Status   string            `gorm:"size:20;default:disconnected;index" json:"status"`
	Settings datatypes.JSONMap `json:"settings"`

	MarketplaceUserID string     `gorm:"size:64" json:"marketplace_user_id"`
	LastError         string     `gorm:"type:text" json:"last_error,omitempty"`
	LastRefreshedAt   *time.Time `json:"last_refreshed_at"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
}

func (Connection) TableName() string {
	return "marketplace_connections"
}

// IsActive 只有 connected 状态可以发起市场调用
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusConnected
}

// TokenValid now < expires_at
func (c *Connection) TokenValid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// SettingString 读取字符串设置
func (c *Connection) SettingString(key, fallback string) string {
	if c.Settings == nil {
		return fallback
	}
	if v, ok := c.Settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// SettingFloat 读取数值设置，JSON 反序列化后数字为 float64
func (c *Connection) SettingFloat(key string, fallback float64) float64 {
	if c.Settings == nil {
		return fallback
	}
	switch v := c.Settings[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}
