package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_hub_202610/internal/model"
)

// ==================== 接口定义 ====================

// ConnectionRepository 市场连接仓储接口
type ConnectionRepository interface {
	// Upsert 按 (user_id, marketplace) 插入或覆盖，完成后 conn 回填为库中最新数据
	Upsert(ctx context.Context, conn *model.Connection) error
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	GetByUserAndID(ctx context.Context, userID string, id int64) (*model.Connection, error)
	GetByUserAndMarketplace(ctx context.Context, userID, marketplace string) (*model.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]model.Connection, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 状态相关
	UpdateStatus(ctx context.Context, id int64, status, lastError string) error
	FindExpiring(ctx context.Context, before time.Time) ([]model.Connection, error)
	ListUsable(ctx context.Context, now time.Time) ([]model.Connection, error)
}

// ==================== 仓储实现 ====================

type connectionRepo struct {
	db *gorm.DB
}

// NewConnectionRepository 创建连接仓储
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

// upsert 时覆盖的列，created_at / created_by 保持首次写入的值
var connectionUpsertColumns = []string{
	"access_token", "refresh_token", "token_type", "scope", "expires_at",
	"status", "settings", "marketplace_user_id", "last_error",
	"last_refreshed_at", "updated_at", "updated_by",
}

func (r *connectionRepo) Upsert(ctx context.Context, conn *model.Connection) error {
	// 主键由数据库决定，避免与唯一键冲突目标以外的约束冲突
	conn.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "marketplace"}},
		DoUpdates: clause.AssignmentColumns(connectionUpsertColumns),
	}).Create(conn).Error
	if err != nil {
		return err
	}

	// 冲突更新时部分驱动不回填主键，统一重新读取
	conn.ID = 0
	return r.db.WithContext(ctx).
		Where("user_id = ? AND marketplace = ?", conn.UserID, conn.Marketplace).
		First(conn).Error
}

func (r *connectionRepo) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	var conn model.Connection
	if err := r.db.WithContext(ctx).First(&conn, id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) GetByUserAndID(ctx context.Context, userID string, id int64) (*model.Connection, error) {
	var conn model.Connection
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) GetByUserAndMarketplace(ctx context.Context, userID, marketplace string) (*model.Connection, error) {
	var conn model.Connection
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND marketplace = ?", userID, marketplace).
		First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) ListByUser(ctx context.Context, userID string) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("marketplace ASC").
		Find(&conns).Error
	return conns, err
}

func (r *connectionRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Connection{}).Where("id = ?", id).Updates(fields).Error
}

func (r *connectionRepo) UpdateStatus(ctx context.Context, id int64, status, lastError string) error {
	return r.db.WithContext(ctx).Model(&model.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}

// FindExpiring 已连接且在 before 之前过期、持有 refresh token 的连接
func (r *connectionRepo) FindExpiring(ctx context.Context, before time.Time) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ConnectionStatusConnected).
		Where("refresh_token <> ''").
		Where("expires_at < ?", before).
		Find(&conns).Error
	return conns, err
}

// ListUsable 已连接且 token 未过期
func (r *connectionRepo) ListUsable(ctx context.Context, now time.Time) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at > ?", model.ConnectionStatusConnected, now).
		Find(&conns).Error
	return conns, err
}
