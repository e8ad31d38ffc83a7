package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 市场商品镜像仓储接口
type ProductRepository interface {
	// Upsert 按 (connection_id, marketplace_product_id) 插入或原地更新，不会产生重复行
	Upsert(ctx context.Context, product *model.MarketplaceProduct) error
	GetByID(ctx context.Context, id int64) (*model.MarketplaceProduct, error)
	GetByMarketplaceID(ctx context.Context, connectionID int64, marketplaceProductID string) (*model.MarketplaceProduct, error)
	List(ctx context.Context, filter ProductFilter) ([]model.MarketplaceProduct, int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 自动同步
	ListAutoSync(ctx context.Context, connectionID int64) ([]model.MarketplaceProduct, error)
}

// ==================== 过滤条件 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	ConnectionIDs []int64 // 为空表示不筛选
	Marketplace   string
	Keyword       string
	SyncStatus    string
	Page          int
	PageSize      int
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

// 导入时覆盖的列
// 加价配置与自动同步开关只能显式修改，导入不覆盖
var productUpsertColumns = []string{
	"marketplace", "title", "description",
	"price", "original_price", "currency",
	"stock_quantity", "condition", "category_ids", "images", "attributes", "source_url",
	"last_sync_at", "sync_status", "updated_at",
}

// upsertColumns 只有能确定操作人时才覆盖 updated_by，自动同步保留上次编辑人
func upsertColumns(ctx context.Context, product *model.MarketplaceProduct) []string {
	if product.UpdatedBy == "" && middleware.GetAuditUserID(ctx) == "" {
		return productUpsertColumns
	}
	cols := make([]string, 0, len(productUpsertColumns)+1)
	cols = append(cols, productUpsertColumns...)
	return append(cols, "updated_by")
}

func (r *productRepo) Upsert(ctx context.Context, product *model.MarketplaceProduct) error {
	product.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "connection_id"},
			{Name: "marketplace_product_id"},
		},
		DoUpdates: clause.AssignmentColumns(upsertColumns(ctx, product)),
	}).Create(product).Error
	if err != nil {
		return err
	}

	product.ID = 0
	return r.db.WithContext(ctx).
		Where("connection_id = ? AND marketplace_product_id = ?", product.ConnectionID, product.MarketplaceProductID).
		First(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.MarketplaceProduct, error) {
	var p model.MarketplaceProduct
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) GetByMarketplaceID(ctx context.Context, connectionID int64, marketplaceProductID string) (*model.MarketplaceProduct, error) {
	var p model.MarketplaceProduct
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND marketplace_product_id = ?", connectionID, marketplaceProductID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.MarketplaceProduct, int64, error) {
	var products []model.MarketplaceProduct
	var total int64

	query := r.db.WithContext(ctx).Model(&model.MarketplaceProduct{})

	if len(filter.ConnectionIDs) > 0 {
		query = query.Where("connection_id IN ?", filter.ConnectionIDs)
	}
	if filter.Marketplace != "" {
		query = query.Where("marketplace = ?", filter.Marketplace)
	}
	if filter.Keyword != "" {
		query = query.Where("title LIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.SyncStatus != "" {
		query = query.Where("sync_status = ?", filter.SyncStatus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	err := query.Order("id DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&products).Error

	return products, total, err
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.MarketplaceProduct{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepo) ListAutoSync(ctx context.Context, connectionID int64) ([]model.MarketplaceProduct, error) {
	var products []model.MarketplaceProduct
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND auto_sync_enabled = ?", connectionID, true).
		Order("id ASC").
		Find(&products).Error
	return products, err
}
