package model

import (
	"time"

	"gorm.io/datatypes"
)

// 导入类型
const (
	ExecutionTypeSearch    = "search"
	ExecutionTypeSelective = "selective"
)

// 导入结果状态
const (
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// ImportExecution 单次导入的审计记录，写入后不再修改
type ImportExecution struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	ConnectionID int64  `gorm:"not null;index" json:"connection_id"`
	UserID       string `gorm:"size:64;index" json:"user_id"`

	ExecutionType string    `gorm:"size:20;not null" json:"execution_type"`
	Status        string    `gorm:"size:20;not null;index" json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`

	ProductsFound     int `json:"products_found"`
	ProductsProcessed int `json:"products_processed"`
	ProductsImported  int `json:"products_imported"`

	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	Summary      datatypes.JSONMap `json:"summary"`

	CreatedAt time.Time `json:"created_at"`
}

func (ImportExecution) TableName() string {
	return "import_executions"
}
