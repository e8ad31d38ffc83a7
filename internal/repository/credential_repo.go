package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_hub_202610/internal/model"
)

// CredentialRepository 市场应用密钥仓储
type CredentialRepository interface {
	// SaveAll 在一个事务内按 (user_id, marketplace, secret_name) upsert
	SaveAll(ctx context.Context, creds []model.MarketplaceCredential) error
	ListByUserAndMarketplace(ctx context.Context, userID, marketplace string) ([]model.MarketplaceCredential, error)
}

type credentialRepo struct {
	db *gorm.DB
}

// NewCredentialRepository 创建密钥仓储
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) SaveAll(ctx context.Context, creds []model.MarketplaceCredential) error {
	if len(creds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "marketplace"},
				{Name: "secret_name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"secret_value", "updated_at", "updated_by"}),
		}).Create(&creds).Error
	})
}

func (r *credentialRepo) ListByUserAndMarketplace(ctx context.Context, userID, marketplace string) ([]model.MarketplaceCredential, error) {
	var creds []model.MarketplaceCredential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND marketplace = ?", userID, marketplace).
		Order("secret_name ASC").
		Find(&creds).Error
	return creds, err
}
