package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_hub_202610/internal/model"
)

// ImportExecutionRepository 导入执行记录仓储
// 记录只插入不更新
type ImportExecutionRepository interface {
	Create(ctx context.Context, exec *model.ImportExecution) error
	GetByID(ctx context.Context, id string) (*model.ImportExecution, error)
	ListByConnection(ctx context.Context, connectionID int64, limit int) ([]model.ImportExecution, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.ImportExecution, error)
}

type importExecutionRepo struct {
	db *gorm.DB
}

// NewImportExecutionRepository 创建执行记录仓储
func NewImportExecutionRepository(db *gorm.DB) ImportExecutionRepository {
	return &importExecutionRepo{db: db}
}

func (r *importExecutionRepo) Create(ctx context.Context, exec *model.ImportExecution) error {
	return r.db.WithContext(ctx).Create(exec).Error
}

func (r *importExecutionRepo) GetByID(ctx context.Context, id string) (*model.ImportExecution, error) {
	var exec model.ImportExecution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&exec).Error; err != nil {
		return nil, err
	}
	return &exec, nil
}

func (r *importExecutionRepo) ListByConnection(ctx context.Context, connectionID int64, limit int) ([]model.ImportExecution, error) {
	var list []model.ImportExecution
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&list).Error
	return list, err
}

func (r *importExecutionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.ImportExecution, error) {
	var list []model.ImportExecution
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&list).Error
	return list, err
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
