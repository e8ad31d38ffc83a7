package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/pkg/cache"
	"storefront_hub_202610/pkg/events"
	"storefront_hub_202610/pkg/utils"
)

// 导入触发来源
const (
	TriggerManual   = "manual"
	TriggerAutoSync = "auto_sync"
)

// ImportOptions 编排器参数
type ImportOptions struct {
	RequestDelay   time.Duration // 相邻两次 FetchByID 的固定间隔，0 表示不等待
	SearchCap      int           // 搜索模式最多导入条数
	SearchLimit    int           // 搜索接口单次返回上限
	PublishTimeout time.Duration // 导入完成事件的发布超时
}

// DefaultImportOptions 默认参数
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		RequestDelay:   100 * time.Millisecond,
		SearchCap:      20,
		SearchLimit:    50,
		PublishTimeout: 3 * time.Second,
	}
}

// ImportRequest 导入请求
// ProductIDs 非空时为精选模式，否则按 SearchQuery 搜索
type ImportRequest struct {
	ConnectionID   int64
	SearchQuery    string
	ProductIDs     []string
	ImportSelected bool
	Trigger        string
}

// ImportResult 导入结果
type ImportResult struct {
	Products      []model.MarketplaceProduct
	Execution     *model.ImportExecution
	ImportedCount int
}

// ImportService 导入编排器
type ImportService struct {
	connRepo    repository.ConnectionRepository
	productRepo repository.ProductRepository
	execRepo    repository.ImportExecutionRepository
	adapters    *AdapterRegistry
	publisher   events.Publisher
	cache       *cache.Service
	guard       *ImportGuard
	opts        ImportOptions
	logger      *zap.Logger
	now         func() time.Time
}

// NewImportService 创建导入编排器
func NewImportService(
	connRepo repository.ConnectionRepository,
	productRepo repository.ProductRepository,
	execRepo repository.ImportExecutionRepository,
	adapters *AdapterRegistry,
	publisher events.Publisher,
	cacheSvc *cache.Service,
	opts ImportOptions,
	logger *zap.Logger,
) *ImportService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchCap <= 0 {
		opts.SearchCap = DefaultImportOptions().SearchCap
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultImportOptions().SearchLimit
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultImportOptions().PublishTimeout
	}
	return &ImportService{
		connRepo:    connRepo,
		productRepo: productRepo,
		execRepo:    execRepo,
		adapters:    adapters,
		publisher:   publisher,
		cache:       cacheSvc,
		guard:       NewImportGuard(),
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock 替换时钟 (测试用)
func (s *ImportService) SetClock(now func() time.Time) {
	s.now = now
}

// RunImport 执行一次导入
// 校验 -> (精选: 逐个拉取) 或 (搜索: 搜索后按上限逐个拉取) -> 归一化 -> upsert -> 写执行记录
// 连接/令牌级错误直接返回且不写执行记录；单个商品失败只计数不中断
func (s *ImportService) RunImport(ctx context.Context, userID string, req ImportRequest) (*ImportResult, error) {
	// 1. 请求校验
	ids := dedupeIDs(req.ProductIDs)
	query := strings.TrimSpace(req.SearchQuery)
	if len(ids) == 0 && (req.ImportSelected || query == "") {
		return nil, ErrInvalidImportRequest
	}

	// 2. 连接校验，在任何市场调用之前完成
	conn, err := s.loadConnection(ctx, userID, req.ConnectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive() {
		return nil, ErrConnectionInactive
	}
	if !conn.TokenValid(s.now()) {
		return nil, &TokenExpiredError{ConnectionID: conn.ID, ExpiredAt: conn.ExpiresAt}
	}
	adapter, err := s.adapters.Get(conn.Marketplace)
	if err != nil {
		return nil, err
	}

	// 3. 连接级互斥
	release, ok := s.guard.TryAcquire(ConnectionImportKey(conn.ID))
	if !ok {
		return nil, ErrImportInProgress
	}
	defer release()

	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}
	run := &importRun{
		exec: &model.ImportExecution{
			ID:           uuid.NewString(),
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			StartedAt:    s.now(),
			Summary: datatypes.JSONMap{
				"trigger":     trigger,
				"marketplace": conn.Marketplace,
			},
		},
		log: s.logger.With(
			zap.Int64("connection_id", conn.ID),
			zap.String("marketplace", conn.Marketplace),
		),
	}

	// 4. 确定待拉取的 id 列表
	if len(ids) > 0 {
		run.exec.ExecutionType = model.ExecutionTypeSelective
		run.exec.ProductsFound = len(ids)
		run.exec.Summary["mode"] = model.ExecutionTypeSelective
		run.exec.Summary["requested_ids"] = ids
	} else {
		run.exec.ExecutionType = model.ExecutionTypeSearch
		run.exec.Summary["mode"] = model.ExecutionTypeSearch
		run.exec.Summary["query"] = query
		run.exec.Summary["cap"] = s.opts.SearchCap

		ids, err = s.searchIDs(ctx, adapter, conn, query, run)
		if err != nil {
			// 搜索整体失败: 零写入，仍然记录执行
			run.log.Warn("marketplace search failed", zap.String("query", query), zap.Error(err))
			run.exec.ErrorMessage = err.Error()
			return s.finish(ctx, conn, run)
		}
	}

	// 5. 逐个拉取，固定间隔
	s.fetchAll(ctx, adapter, conn, ids, run)

	return s.finish(ctx, conn, run)
}

// importRun 单次导入的可变状态
type importRun struct {
	exec      *model.ImportExecution
	products  []model.MarketplaceProduct
	processed int
	failedIDs []string
	cancelled bool
	log       *zap.Logger
}

func (s *ImportService) loadConnection(ctx context.Context, userID string, connectionID int64) (*model.Connection, error) {
	var (
		conn *model.Connection
		err  error
	)
	if userID == "" {
		conn, err = s.connRepo.GetByID(ctx, connectionID)
	} else {
		conn, err = s.connRepo.GetByUserAndID(ctx, userID, connectionID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	return conn, err
}

func (s *ImportService) searchIDs(ctx context.Context, adapter MarketplaceAdapter, conn *model.Connection, query string, run *importRun) ([]string, error) {
	res, err := adapter.Search(ctx, SearchQuery{
		Query:       query,
		AccessToken: conn.AccessToken,
		Limit:       s.opts.SearchLimit,
		Region:      conn.SettingString(model.SettingSiteID, ""),
	})
	if err != nil {
		return nil, err
	}

	run.exec.ProductsFound = res.Total
	if run.exec.ProductsFound < len(res.Records) {
		run.exec.ProductsFound = len(res.Records)
	}

	// 先去重再截断，重复命中不占名额
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		ids = append(ids, rec.ID)
	}
	ids = dedupeIDs(ids)
	if len(ids) > s.opts.SearchCap {
		ids = ids[:s.opts.SearchCap]
	}
	return ids, nil
}

func (s *ImportService) fetchAll(ctx context.Context, adapter MarketplaceAdapter, conn *model.Connection, ids []string, run *importRun) {
	var limiter *rate.Limiter
	if s.opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.RequestDelay), 1)
	}

	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				run.cancelled = true
				break
			}
		} else if ctx.Err() != nil {
			run.cancelled = true
			break
		}

		raw, err := adapter.FetchByID(ctx, id, conn.AccessToken)
		if err != nil {
			run.log.Warn("fetch product failed, skipped", zap.String("item_id", id), zap.Error(err))
			run.failedIDs = append(run.failedIDs, id)
			continue
		}
		run.processed++

		product, err := s.normalizeAndSave(ctx, adapter, conn, raw)
		if err != nil {
			run.log.Warn("save product failed, skipped", zap.String("item_id", id), zap.Error(err))
			run.failedIDs = append(run.failedIDs, id)
			continue
		}
		run.products = append(run.products, *product)
	}
}

// normalizeAndSave 已存在的商品沿用其加价配置并重算售价
func (s *ImportService) normalizeAndSave(ctx context.Context, adapter MarketplaceAdapter, conn *model.Connection, raw *RawProduct) (*model.MarketplaceProduct, error) {
	product, err := adapter.Normalize(raw, conn, s.now())
	if err != nil {
		return nil, err
	}

	existing, err := s.productRepo.GetByMarketplaceID(ctx, conn.ID, product.MarketplaceProductID)
	switch {
	case err == nil:
		product.MarkupType = existing.MarkupType
		product.MarkupValue = existing.MarkupValue
		product.Price = utils.ApplyMarkup(product.OriginalPrice, existing.MarkupType, existing.MarkupValue, product.Currency)
		product.AutoSyncEnabled = existing.AutoSyncEnabled
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err = s.productRepo.Upsert(ctx, product); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Delete(ctx, ProductCacheKey(product.ID))
	}
	return product, nil
}

func (s *ImportService) finish(ctx context.Context, conn *model.Connection, run *importRun) (*ImportResult, error) {
	exec := run.exec
	exec.FinishedAt = s.now()
	exec.ProductsProcessed = run.processed
	exec.ProductsImported = len(run.products)
	if run.processed > 0 {
		exec.Status = model.ExecutionStatusCompleted
	} else {
		exec.Status = model.ExecutionStatusFailed
	}
	if len(run.failedIDs) > 0 {
		exec.Summary["failed_ids"] = run.failedIDs
	}
	if run.cancelled {
		exec.Summary["cancelled"] = true
	}

	// 请求被取消时执行记录仍需落库
	writeCtx := context.WithoutCancel(ctx)
	if err := s.execRepo.Create(writeCtx, exec); err != nil {
		return nil, err
	}

	if err := s.connRepo.UpdateFields(writeCtx, conn.ID, map[string]interface{}{"last_sync_at": exec.FinishedAt}); err != nil {
		run.log.Warn("update connection last_sync_at failed", zap.Error(err))
	}

	// 发布方不可达时不能拖住请求
	pubCtx, cancel := context.WithTimeout(writeCtx, s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, events.ImportCompleted{
		ExecutionID:       exec.ID,
		ConnectionID:      conn.ID,
		UserID:            conn.UserID,
		Marketplace:       conn.Marketplace,
		ExecutionType:     exec.ExecutionType,
		Status:            exec.Status,
		ProductsFound:     exec.ProductsFound,
		ProductsProcessed: exec.ProductsProcessed,
		ProductsImported:  exec.ProductsImported,
		FinishedAt:        exec.FinishedAt,
	}); err != nil {
		run.log.Warn("publish import event failed", zap.Error(err))
	}

	run.log.Info("import finished",
		zap.String("execution_id", exec.ID),
		zap.String("type", exec.ExecutionType),
		zap.Int("found", exec.ProductsFound),
		zap.Int("processed", exec.ProductsProcessed),
		zap.Int("imported", exec.ProductsImported),
	)

	products := run.products
	if products == nil {
		products = []model.MarketplaceProduct{}
	}
	return &ImportResult{
		Products:      products,
		Execution:     exec,
		ImportedCount: exec.ProductsImported,
	}, nil
}

// ListExecutions 连接的导入历史
func (s *ImportService) ListExecutions(ctx context.Context, userID string, connectionID int64, limit int) ([]model.ImportExecution, error) {
	if connectionID == 0 {
		return s.execRepo.ListByUser(ctx, userID, limit)
	}
	if _, err := s.loadConnection(ctx, userID, connectionID); err != nil {
		return nil, err
	}
	return s.execRepo.ListByConnection(ctx, connectionID, limit)
}

// dedupeIDs 去空、去重，保留首次出现的顺序
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
