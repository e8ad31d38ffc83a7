package model

import (
	"time"
)

// BaseModel 通用主键与时间戳
// 业务表均不做软删除：连接只标记 disconnected，商品保留最后一次同步的数据
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// --- 审计字段 (身份服务签发的用户 ID) ---
	CreatedBy string `gorm:"size:64;comment:创建人ID" json:"created_by,omitempty"`
	UpdatedBy string `gorm:"size:64;comment:更新人ID" json:"updated_by,omitempty"`
}
