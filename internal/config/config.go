package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 支持的市场标识
const (
	MarketplaceMercadoLivre = "mercadolivre"
	MarketplaceAmazon       = "amazon"
	MarketplaceShopee       = "shopee"
)

// Marketplaces 所有已配置的市场，顺序即注册顺序
var Marketplaces = []string{MarketplaceMercadoLivre, MarketplaceAmazon, MarketplaceShopee}

// ==================== 配置结构 ====================

// Config 应用配置
type Config struct {
	AppEnv     string
	LogLevel   string
	ServerPort string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret          string
	CORSAllowedOrigins []string

	Import ImportConfig
	Cache  CacheConfig
	Task   TaskConfig

	// key: 市场标识 (mercadolivre / amazon / shopee)
	Marketplaces map[string]MarketplaceConfig
}

// ImportConfig 导入编排配置
type ImportConfig struct {
	RequestDelay time.Duration // 相邻两次 fetch 之间的固定间隔
	SearchCap    int           // 搜索模式最多导入条数
	SearchLimit  int           // 搜索接口单次返回上限

	FetchDescription bool // 拉取商品时是否补充描述
}

// CacheConfig 缓存配置
type CacheConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	KeyPrefix     string
}

// TaskConfig 定时任务配置
type TaskConfig struct {
	TokenRefreshCron   string
	TokenRefreshWindow time.Duration
	AutoSyncCron       string
}

// MarketplaceConfig 单个市场的 OAuth 应用配置
type MarketplaceConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Region       string
}

// Configured 是否填写了 client id/secret
func (m MarketplaceConfig) Configured() bool {
	return m.ClientID != "" && m.ClientSecret != ""
}

// ==================== 加载 ====================

// Load 读取 .env / config.yaml / 环境变量
// 优先级: 环境变量 > config.yaml > 默认值
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		AppEnv:             v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		ServerPort:         v.GetString("SERVER_PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Import: ImportConfig{
			RequestDelay: v.GetDuration("IMPORT_REQUEST_DELAY"),
			SearchCap:    v.GetInt("IMPORT_SEARCH_CAP"),
			SearchLimit:  v.GetInt("IMPORT_SEARCH_LIMIT"),

			FetchDescription: v.GetBool("IMPORT_FETCH_DESCRIPTION"),
		},
		Cache: CacheConfig{
			DefaultTTL:    v.GetDuration("CACHE_DEFAULT_TTL"),
			SweepInterval: v.GetDuration("CACHE_SWEEP_INTERVAL"),
			KeyPrefix:     v.GetString("CACHE_KEY_PREFIX"),
		},
		Task: TaskConfig{
			TokenRefreshCron:   v.GetString("TOKEN_REFRESH_CRON"),
			TokenRefreshWindow: v.GetDuration("TOKEN_REFRESH_WINDOW"),
			AutoSyncCron:       v.GetString("AUTO_SYNC_CRON"),
		},
		Marketplaces: make(map[string]MarketplaceConfig, len(Marketplaces)),
	}

	for _, name := range Marketplaces {
		prefix := strings.ToUpper(name) + "_"
		cfg.Marketplaces[name] = MarketplaceConfig{
			ClientID:     v.GetString(prefix + "CLIENT_ID"),
			ClientSecret: v.GetString(prefix + "CLIENT_SECRET"),
			RedirectURI:  v.GetString(prefix + "REDIRECT_URI"),
			Region:       v.GetString(prefix + "REGION"),
		}
	}

	if cfg.Import.SearchCap <= 0 {
		return nil, errors.New("IMPORT_SEARCH_CAP 必须大于 0")
	}

	return cfg, nil
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DATABASE_URL", "sqlite://storefront.db")
	v.SetDefault("KAFKA_TOPIC", "marketplace-import-events")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("IMPORT_REQUEST_DELAY", 100*time.Millisecond)
	v.SetDefault("IMPORT_SEARCH_CAP", 20)
	v.SetDefault("IMPORT_SEARCH_LIMIT", 50)
	v.SetDefault("IMPORT_FETCH_DESCRIPTION", true)

	v.SetDefault("CACHE_DEFAULT_TTL", 5*time.Minute)
	v.SetDefault("CACHE_SWEEP_INTERVAL", 5*time.Minute)
	v.SetDefault("CACHE_KEY_PREFIX", "storefront:")

	v.SetDefault("TOKEN_REFRESH_CRON", "0 0/30 * * * *")
	v.SetDefault("TOKEN_REFRESH_WINDOW", time.Hour)
	v.SetDefault("AUTO_SYNC_CRON", "0 0 * * * *")

	v.SetDefault("MERCADOLIVRE_REGION", "MLB")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
