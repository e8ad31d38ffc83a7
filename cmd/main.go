package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/controller"
	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/internal/router"
	"storefront_hub_202610/internal/service"
	"storefront_hub_202610/internal/task"
	"storefront_hub_202610/pkg/cache"
	"storefront_hub_202610/pkg/database"
	"storefront_hub_202610/pkg/events"
	"storefront_hub_202610/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	zl, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据库
	db, err := initDatabase(cfg, zl)
	if err != nil {
		zl.Fatal("数据库初始化失败", zap.Error(err))
	}

	// 4. 初始化依赖
	deps, err := initDependencies(ctx, cfg, db, zl)
	if err != nil {
		zl.Fatal("依赖初始化失败", zap.Error(err))
	}
	defer deps.Close()

	// 5. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		zl.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 6. 初始化路由
	r := router.New(router.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         zl,
		HealthCheck: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, *deps.Controllers)

	// 7. 启动服务
	if err := startServer(ctx, r, cfg.ServerPort, zl); err != nil {
		zl.Error("服务异常退出", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("服务已退出")
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Logger      *zap.Logger
	Repos       *Repositories
	Services    *Services
	Controllers *router.Controllers
	Tasks       *task.TaskManager

	cacheStore cache.Store
	publisher  events.Publisher
}

// Repositories 仓库集合
type Repositories struct {
	Connection repository.ConnectionRepository
	Product    repository.ProductRepository
	Execution  repository.ImportExecutionRepository
	Credential repository.CredentialRepository
}

// Services 服务集合
type Services struct {
	Cache      *cache.Service
	Adapters   *service.AdapterRegistry
	Auth       *service.AuthService
	Import     *service.ImportService
	Product    *service.ProductService
	Credential *service.CredentialService
}

// Close 按依赖逆序释放资源
func (d *Dependencies) Close() {
	if d.Tasks != nil {
		d.Tasks.Stop()
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.Logger.Warn("关闭事件发布器失败", zap.Error(err))
		}
	}
	switch s := d.cacheStore.(type) {
	case *cache.RedisStore:
		if err := s.Close(); err != nil {
			d.Logger.Warn("关闭 Redis 失败", zap.Error(err))
		}
	case *cache.MemoryStore:
		s.Close()
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func initDatabase(cfg *config.Config, zl *zap.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.DatabaseURL, database.DefaultOptions(), model.AllModels()...)
	if err != nil {
		return nil, err
	}
	if err := middleware.RegisterAuditCallbacks(db); err != nil {
		return nil, err
	}
	zl.Info("数据库连接成功")
	return db, nil
}

func initDependencies(ctx context.Context, cfg *config.Config, db *gorm.DB, zl *zap.Logger) (*Dependencies, error) {
	jwtCfg := middleware.DefaultJWTConfig()
	if cfg.JWTSecret != "" {
		jwtCfg.SecretKey = cfg.JWTSecret
	} else if cfg.IsProduction() {
		return nil, errors.New("生产环境必须配置 JWT_SECRET")
	}
	middleware.SetJWTConfig(jwtCfg)

	deps := &Dependencies{Config: cfg, DB: db, Logger: zl}

	// 1. 缓存
	store, err := initCacheStore(ctx, cfg, zl)
	if err != nil {
		return nil, err
	}
	deps.cacheStore = store

	// 2. 事件发布
	deps.publisher = initPublisher(cfg, zl)

	// 3. 仓储 / 服务 / 任务 / 控制器
	deps.Repos = initRepositories(db)
	deps.Services = initServices(cfg, deps.Repos, store, deps.publisher, zl)
	deps.Tasks = initTasks(cfg, deps.Repos, deps.Services, zl)
	deps.Controllers = initControllers(deps.Services, deps.Tasks)

	return deps, nil
}

func initCacheStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (cache.Store, error) {
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(cfg.RedisURL, cfg.Cache.KeyPrefix, cfg.Cache.DefaultTTL)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			// Redis 不可用时退回内存缓存
			zl.Warn("Redis 不可用，使用内存缓存", zap.Error(err))
			_ = rs.Close()
		} else {
			zl.Info("使用 Redis 缓存")
			return rs, nil
		}
	}

	ms := cache.NewMemoryStore(
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
	)
	ms.Start(ctx)
	zl.Info("使用内存缓存", zap.Duration("sweep_interval", cfg.Cache.SweepInterval))
	return ms, nil
}

func initPublisher(cfg *config.Config, zl *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}
	}
	zl.Info("导入事件发布到 Kafka",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Connection: repository.NewConnectionRepository(db),
		Product:    repository.NewProductRepository(db),
		Execution:  repository.NewImportExecutionRepository(db),
		Credential: repository.NewCredentialRepository(db),
	}
}

func initServices(cfg *config.Config, repos *Repositories, store cache.Store, publisher events.Publisher, zl *zap.Logger) *Services {
	cacheSvc := cache.NewService(store, zl)

	adapters := service.NewDefaultAdapters(cfg)

	importOpts := service.ImportOptions{
		RequestDelay: cfg.Import.RequestDelay,
		SearchCap:    cfg.Import.SearchCap,
		SearchLimit:  cfg.Import.SearchLimit,
	}

	return &Services{
		Cache:    cacheSvc,
		Adapters: adapters,
		Auth: service.NewAuthService(
			repos.Connection, repos.Credential, adapters, cfg.Marketplaces, cacheSvc, zl,
		),
		Import: service.NewImportService(
			repos.Connection, repos.Product, repos.Execution, adapters, publisher, cacheSvc, importOpts, zl,
		),
		Product:    service.NewProductService(repos.Product, repos.Connection, cacheSvc, zl),
		Credential: service.NewCredentialService(repos.Credential, adapters, zl),
	}
}

func initControllers(svc *Services, tasks *task.TaskManager) *router.Controllers {
	return &router.Controllers{
		OAuth:      controller.NewOAuthController(svc.Auth),
		Import:     controller.NewImportController(svc.Import),
		Product:    controller.NewProductController(svc.Product),
		Credential: controller.NewCredentialController(svc.Credential),
		Cache:      controller.NewCacheController(svc.Cache),
		Sync:       controller.NewSyncController(tasks),
	}
}

// initTasks 只创建任务，由 main 在路由就绪前启动
func initTasks(cfg *config.Config, repos *Repositories, svc *Services, zl *zap.Logger) *task.TaskManager {
	tcfg := task.DefaultConfig()
	tcfg.TokenSpec = cfg.Task.TokenRefreshCron
	tcfg.TokenWindow = cfg.Task.TokenRefreshWindow
	tcfg.AutoSyncSpec = cfg.Task.AutoSyncCron
	tcfg.TokenEnabled = tcfg.TokenSpec != ""
	tcfg.AutoSyncEnabled = tcfg.AutoSyncSpec != ""

	return task.NewTaskManager(&task.TaskManagerDeps{
		ConnRepo:    repos.Connection,
		ProductRepo: repos.Product,
		Refresher:   svc.Auth,
		Importer:    svc.Import,
	}, tcfg, zl)
}

// ==================== HTTP 服务 ====================

func startServer(ctx context.Context, r *gin.Engine, port string, zl *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("正在关闭服务...")

		// 等待进行中的导入写完执行记录
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
