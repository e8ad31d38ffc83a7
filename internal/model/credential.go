package model

// MarketplaceCredential 用户保存的市场应用密钥，一行一个字段
// SecretValue 只在服务端使用，不输出
type MarketplaceCredential struct {
	BaseModel

	UserID      string `gorm:"size:64;not null;uniqueIndex:idx_cred_user_mkt_name,priority:1" json:"user_id"`
	Marketplace string `gorm:"size:32;not null;uniqueIndex:idx_cred_user_mkt_name,priority:2" json:"marketplace"`
	SecretName  string `gorm:"size:128;not null;uniqueIndex:idx_cred_user_mkt_name,priority:3" json:"secret_name"`
	SecretValue string `gorm:"type:text;not null" json:"-"`
}

func (MarketplaceCredential) TableName() string {
	return "marketplace_credentials"
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&Connection{},
		&MarketplaceProduct{},
		&ImportExecution{},
		&MarketplaceCredential{},
	}
}
