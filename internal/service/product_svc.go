package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/pkg/cache"
	"storefront_hub_202610/pkg/utils"
)

const productCacheTTL = 5 * time.Minute

// ProductCacheKey 店铺前台商品缓存 key
func ProductCacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// ProductService 商品镜像读取与加价编辑
type ProductService struct {
	productRepo repository.ProductRepository
	connRepo    repository.ConnectionRepository
	cache       *cache.Service
	logger      *zap.Logger
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository, connRepo repository.ConnectionRepository, cacheSvc *cache.Service, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo: productRepo,
		connRepo:    connRepo,
		cache:       cacheSvc,
		logger:      logger,
	}
}

// GetProduct 前台读取，先查缓存，缓存不可用时直接读库
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*model.MarketplaceProduct, error) {
	key := ProductCacheKey(id)

	var cached model.MarketplaceProduct
	if s.cache != nil && s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := s.productRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, key, p, productCacheTTL)
	}
	return p, nil
}

// ProductListFilter 后台列表条件
type ProductListFilter struct {
	ConnectionID int64
	Keyword      string
	SyncStatus   string
	Page         int
	PageSize     int
}

// List 只返回当前用户连接下的商品
func (s *ProductService) List(ctx context.Context, userID string, filter ProductListFilter) ([]model.MarketplaceProduct, int64, error) {
	conns, err := s.connRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	var connIDs []int64
	for _, c := range conns {
		if filter.ConnectionID == 0 || filter.ConnectionID == c.ID {
			connIDs = append(connIDs, c.ID)
		}
	}
	if len(connIDs) == 0 {
		return []model.MarketplaceProduct{}, 0, nil
	}

	return s.productRepo.List(ctx, repository.ProductFilter{
		ConnectionIDs: connIDs,
		Keyword:       filter.Keyword,
		SyncStatus:    filter.SyncStatus,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	})
}

// UpdateMarkup 显式修改加价并重算售价，这是加价配置唯一的修改入口
func (s *ProductService) UpdateMarkup(ctx context.Context, userID string, id int64, markupType string, markupValue float64) (*model.MarketplaceProduct, error) {
	if !utils.ValidMarkupType(markupType) {
		return nil, ErrInvalidMarkup
	}

	p, err := s.ownedProduct(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	price := utils.ApplyMarkup(p.OriginalPrice, markupType, markupValue, p.Currency)
	if err = s.productRepo.UpdateFields(ctx, id, map[string]interface{}{
		"markup_type":  markupType,
		"markup_value": markupValue,
		"price":        price,
	}); err != nil {
		return nil, err
	}

	p.MarkupType, p.MarkupValue, p.Price = markupType, markupValue, price
	s.invalidate(ctx, id)
	return p, nil
}

// SetAutoSync 开关自动同步
func (s *ProductService) SetAutoSync(ctx context.Context, userID string, id int64, enabled bool) (*model.MarketplaceProduct, error) {
	p, err := s.ownedProduct(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err = s.productRepo.UpdateFields(ctx, id, map[string]interface{}{"auto_sync_enabled": enabled}); err != nil {
		return nil, err
	}
	p.AutoSyncEnabled = enabled
	s.invalidate(ctx, id)
	return p, nil
}

func (s *ProductService) ownedProduct(ctx context.Context, userID string, id int64) (*model.MarketplaceProduct, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err = s.connRepo.GetByUserAndID(ctx, userID, p.ConnectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProductService) invalidate(ctx context.Context, id int64) {
	if s.cache != nil {
		s.cache.Delete(ctx, ProductCacheKey(id))
	}
}
