package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront_hub_202610/internal/config"
	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
	"storefront_hub_202610/pkg/cache"
	"storefront_hub_202610/pkg/logger"
	"storefront_hub_202610/pkg/utils"
)

const (
	oauthStateTTL       = 10 * time.Minute
	oauthStatePrefix    = "oauth_state:"
	defaultTokenExpires = 6 * time.Hour // 提供方未返回有效期时使用
)

// TokenData 返回给前端的令牌信息，不包含令牌本身
type TokenData struct {
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Scope     string    `json:"scope"`
}

// ExchangeRequest 授权码换取令牌
type ExchangeRequest struct {
	Marketplace string
	Code        string
	RedirectURI string
	UserID      string
	State       string // 可选，来自 GenerateAuthURL 时携带 PKCE verifier
}

// oauthState 缓存中的授权上下文
type oauthState struct {
	UserID      string `json:"user_id"`
	Marketplace string `json:"marketplace"`
	Verifier    string `json:"verifier"`
	RedirectURI string `json:"redirect_uri"`
}

// AuthService OAuth 授权码交换与令牌刷新
type AuthService struct {
	connRepo     repository.ConnectionRepository
	credRepo     repository.CredentialRepository
	adapters     *AdapterRegistry
	marketplaces map[string]config.MarketplaceConfig
	cache        *cache.Service
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time

	refreshGroup singleflight.Group
}

// NewAuthService 工厂方法
func NewAuthService(
	connRepo repository.ConnectionRepository,
	credRepo repository.CredentialRepository,
	adapters *AdapterRegistry,
	marketplaces map[string]config.MarketplaceConfig,
	cacheSvc *cache.Service,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		connRepo:     connRepo,
		credRepo:     credRepo,
		adapters:     adapters,
		marketplaces: marketplaces,
		cache:        cacheSvc,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock 替换时钟 (测试用)
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// ==================== 授权链接 ====================

// GenerateAuthURL 生成授权链接，state 与 PKCE verifier 缓存 10 分钟
func (s *AuthService) GenerateAuthURL(ctx context.Context, userID, marketplace, redirectURI string) (string, string, error) {
	// 1. 市场配置
	cfg, err := s.oauthConfig(ctx, userID, marketplace, redirectURI)
	if err != nil {
		return "", "", err
	}

	// 2. PKCE + state
	pkce, err := utils.NewPKCE()
	if err != nil {
		return "", "", err
	}
	state, err := utils.GenerateRandomString(32)
	if err != nil {
		return "", "", err
	}

	// 3. 缓存授权上下文，缓存不可用时回调仍可通过 exchange_code 完成
	if s.cache != nil {
		s.cache.SetJSON(ctx, oauthStatePrefix+state, oauthState{
			UserID:      userID,
			Marketplace: marketplace,
			Verifier:    pkce.Verifier,
			RedirectURI: cfg.RedirectURL,
		}, oauthStateTTL)
	}

	// 4. 拼接授权链接
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
	)
	return authURL, state, nil
}

// ==================== 授权码交换 ====================

// HandleCallback 浏览器回调，根据 state 找回用户与市场
func (s *AuthService) HandleCallback(ctx context.Context, code, state string) (*model.Connection, *TokenData, error) {
	st, ok := s.loadState(ctx, state)
	if !ok {
		return nil, nil, ErrInvalidState
	}
	return s.Exchange(ctx, ExchangeRequest{
		Marketplace: st.Marketplace,
		Code:        code,
		RedirectURI: st.RedirectURI,
		UserID:      st.UserID,
		State:       state,
	})
}

// Exchange 授权码换取令牌并按 (user, marketplace) upsert 连接
// 授权码只能使用一次，失败不重试
func (s *AuthService) Exchange(ctx context.Context, req ExchangeRequest) (*model.Connection, *TokenData, error) {
	// 1. 市场校验，未知市场不发任何请求
	cfg, err := s.oauthConfig(ctx, req.UserID, req.Marketplace, req.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	// 2. 取回 PKCE verifier
	var opts []oauth2.AuthCodeOption
	if req.State != "" {
		st, ok := s.loadState(ctx, req.State)
		if !ok || st.UserID != req.UserID || st.Marketplace != req.Marketplace {
			return nil, nil, ErrInvalidState
		}
		if st.Verifier != "" {
			opts = append(opts, oauth2.VerifierOption(st.Verifier))
		}
		if s.cache != nil {
			s.cache.Delete(ctx, oauthStatePrefix+req.State) // 用完即焚
		}
	}

	// 3. 请求令牌端点
	tok, err := cfg.Exchange(s.httpContext(ctx), req.Code, opts...)
	if err != nil {
		exErr := &OAuthExchangeError{Marketplace: req.Marketplace, Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			exErr.Code = re.ErrorCode
			if re.Response != nil {
				exErr.StatusCode = re.Response.StatusCode
			}
		}
		s.logger.Warn("oauth exchange failed",
			zap.String("user_id", req.UserID),
			zap.String("marketplace", req.Marketplace),
			zap.Int("status", exErr.StatusCode),
			zap.String("code", exErr.Code),
		)
		return nil, nil, exErr
	}

	// 4. 合并已有设置 (加价、站点等)，覆盖令牌
	now := s.now()
	settings := datatypes.JSONMap{}
	if existing, err := s.connRepo.GetByUserAndMarketplace(ctx, req.UserID, req.Marketplace); err == nil {
		for k, v := range existing.Settings {
			settings[k] = v
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	if region := s.marketplaces[req.Marketplace].Region; region != "" {
		if _, ok := settings[model.SettingSiteID]; !ok {
			settings[model.SettingSiteID] = region
		}
	}
	scope := tokenExtraString(tok, "scope")
	if scope != "" {
		settings[model.SettingScopes] = strings.Fields(scope)
	}
	sellerID := tokenExtraString(tok, "user_id")
	if sellerID != "" {
		settings[model.SettingSellerID] = sellerID
	}

	conn := &model.Connection{
		UserID:            req.UserID,
		Marketplace:       req.Marketplace,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		TokenType:         tok.Type(),
		Scope:             scope,
		ExpiresAt:         s.expiresAt(tok, now),
		Status:            model.ConnectionStatusConnected,
		Settings:          settings,
		MarketplaceUserID: sellerID,
		LastRefreshedAt:   &now,
	}

	// 5. 入库
	if err = s.connRepo.Upsert(ctx, conn); err != nil {
		return nil, nil, fmt.Errorf("保存连接失败: %w", err)
	}

	s.logger.Info("marketplace connected",
		zap.String("user_id", req.UserID),
		zap.String("marketplace", req.Marketplace),
		zap.Int64("connection_id", conn.ID),
		zap.Time("expires_at", conn.ExpiresAt),
	)

	return conn, s.tokenData(conn, now), nil
}

// ==================== 令牌刷新 ====================

// RefreshByID 手动刷新
func (s *AuthService) RefreshByID(ctx context.Context, userID string, connectionID int64) (*model.Connection, *TokenData, error) {
	conn, err := s.connRepo.GetByUserAndID(ctx, userID, connectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	conn, err = s.Refresh(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	return conn, s.tokenData(conn, s.now()), nil
}

// Refresh 使用 refresh token 换取新令牌
// 失败时连接标记为 error，旧的 access token 保持不变；不做内部重试
// 同一连接的并发刷新合并为一次请求
func (s *AuthService) Refresh(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	if conn.RefreshToken == "" {
		return nil, &TokenRefreshError{ConnectionID: conn.ID, Err: ErrMissingRefreshToken}
	}

	key := strconv.FormatInt(conn.ID, 10) + ":" + conn.RefreshToken
	v, err, _ := s.refreshGroup.Do(key, func() (interface{}, error) {
		return s.doRefresh(ctx, conn)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Connection), nil
}

func (s *AuthService) doRefresh(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	cfg, err := s.oauthConfig(ctx, conn.UserID, conn.Marketplace, "")
	if err != nil {
		return nil, err
	}

	// 1. 令牌端点 grant_type=refresh_token
	src := cfg.TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: conn.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		refreshErr := &TokenRefreshError{ConnectionID: conn.ID, Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			refreshErr.Code = re.ErrorCode
			if re.Response != nil {
				refreshErr.StatusCode = re.Response.StatusCode
			}
		}

		// 2. 只降级状态，不动令牌
		if uErr := s.connRepo.UpdateStatus(ctx, conn.ID, model.ConnectionStatusError, refreshErr.Error()); uErr != nil {
			s.logger.Error("mark connection error failed", zap.Int64("connection_id", conn.ID), zap.Error(uErr))
		}
		s.logger.Warn("token refresh failed",
			zap.Int64("connection_id", conn.ID),
			zap.String("marketplace", conn.Marketplace),
			zap.String("refresh_token", logger.MaskSecret(conn.RefreshToken)),
			zap.Int("status", refreshErr.StatusCode),
			zap.String("code", refreshErr.Code),
		)
		return nil, refreshErr
	}

	// 3. 更新令牌，提供方未返回新 refresh token 时沿用旧的
	now := s.now()
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}
	fields := map[string]interface{}{
		"access_token":      tok.AccessToken,
		"refresh_token":     refreshToken,
		"token_type":        tok.Type(),
		"expires_at":        s.expiresAt(tok, now),
		"status":            model.ConnectionStatusConnected,
		"last_error":        "",
		"last_refreshed_at": now,
	}
	if err = s.connRepo.UpdateFields(ctx, conn.ID, fields); err != nil {
		return nil, fmt.Errorf("保存刷新结果失败: %w", err)
	}

	s.logger.Info("token refreshed",
		zap.Int64("connection_id", conn.ID),
		zap.String("marketplace", conn.Marketplace),
		zap.String("access_token", logger.MaskSecret(tok.AccessToken)),
	)
	return s.connRepo.GetByID(ctx, conn.ID)
}

// ==================== 连接管理 ====================

// ListConnections 当前用户的所有连接
func (s *AuthService) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	return s.connRepo.ListByUser(ctx, userID)
}

// Disconnect 清除令牌并标记 disconnected，记录本身保留
func (s *AuthService) Disconnect(ctx context.Context, userID string, connectionID int64) (*model.Connection, error) {
	conn, err := s.connRepo.GetByUserAndID(ctx, userID, connectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err = s.connRepo.UpdateFields(ctx, conn.ID, map[string]interface{}{
		"access_token":  "",
		"refresh_token": "",
		"status":        model.ConnectionStatusDisconnected,
	}); err != nil {
		return nil, err
	}
	return s.connRepo.GetByID(ctx, conn.ID)
}

// ==================== 内部方法 ====================

// oauthConfig 组装 oauth2.Config
// 用户保存的应用凭证优先于环境变量
func (s *AuthService) oauthConfig(ctx context.Context, userID, marketplace, redirectURI string) (*oauth2.Config, error) {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}

	mc := s.marketplaces[marketplace]
	if s.credRepo != nil && userID != "" {
		creds, err := s.credRepo.ListByUserAndMarketplace(ctx, userID, marketplace)
		if err != nil {
			return nil, err
		}
		for _, c := range creds {
			switch c.SecretName {
			case CredentialSecretName(marketplace, "client_id"):
				mc.ClientID = c.SecretValue
			case CredentialSecretName(marketplace, "client_secret"):
				mc.ClientSecret = c.SecretValue
			case CredentialSecretName(marketplace, "redirect_uri"):
				mc.RedirectURI = c.SecretValue
			}
		}
	}

	if redirectURI == "" {
		redirectURI = mc.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     mc.ClientID,
		ClientSecret: mc.ClientSecret,
		Endpoint:     adapter.OAuthEndpoint(),
		RedirectURL:  redirectURI,
	}, nil
}

func (s *AuthService) loadState(ctx context.Context, state string) (*oauthState, bool) {
	if state == "" || s.cache == nil {
		return nil, false
	}
	var st oauthState
	if !s.cache.GetJSON(ctx, oauthStatePrefix+state, &st) {
		return nil, false
	}
	return &st, true
}

func (s *AuthService) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// expiresAt now + expires_in
func (s *AuthService) expiresAt(tok *oauth2.Token, now time.Time) time.Time {
	if tok.ExpiresIn > 0 {
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return now.Add(defaultTokenExpires)
}

func (s *AuthService) tokenData(conn *model.Connection, now time.Time) *TokenData {
	expiresIn := int64(conn.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &TokenData{
		TokenType: conn.TokenType,
		ExpiresIn: expiresIn,
		ExpiresAt: conn.ExpiresAt,
		Scope:     conn.Scope,
	}
}

// tokenExtraString 令牌响应中的附加字段，数字按整数格式化
func tokenExtraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
