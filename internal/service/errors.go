package service

import (
	"errors"
	"fmt"
	"time"
)

// ==================== 通用错误 ====================

var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionInactive   = errors.New("connection is not active, reconnect required")
	ErrMissingRefreshToken  = errors.New("connection has no refresh token")
	ErrImportInProgress     = errors.New("an import is already running for this connection")
	ErrInvalidImportRequest = errors.New("either productIds or searchQuery is required")
	ErrNotImplemented       = errors.New("marketplace operation not implemented")
	ErrInvalidState         = errors.New("oauth state is invalid or expired")
	ErrProductNotFound      = errors.New("product not found")
	ErrInvalidMarkup        = errors.New("markup type must be percentage or flat")
	ErrMissingCredential    = errors.New("required credential field is missing")
)

// ==================== 市场相关错误 ====================

// OAuthExchangeError 授权码无效/过期/已使用，不重试
type OAuthExchangeError struct {
	Marketplace string
	StatusCode  int
	Code        string // 提供方错误码，如 invalid_grant
	Err         error
}

func (e *OAuthExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s oauth exchange failed (status %d): %s", e.Marketplace, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s oauth exchange failed: %v", e.Marketplace, e.Err)
}

func (e *OAuthExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError refresh token 失效或被吊销，连接已标记为 error
type TokenRefreshError struct {
	ConnectionID int64
	StatusCode   int
	Code         string
	Err          error
}

func (e *TokenRefreshError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token refresh failed for connection %d (status %d): %s, reconnect required", e.ConnectionID, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("token refresh failed for connection %d: %v, reconnect required", e.ConnectionID, e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// TokenExpiredError 调用方使用了过期的 access token，需先显式刷新
type TokenExpiredError struct {
	ConnectionID int64
	ExpiredAt    time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("access token of connection %d expired at %s, refresh first", e.ConnectionID, e.ExpiredAt.Format(time.RFC3339))
}

// MarketplaceFetchError 单个商品拉取失败，只记录并跳过
type MarketplaceFetchError struct {
	Marketplace string
	ItemID      string // 搜索请求时为空
	StatusCode  int
	Err         error
}

func (e *MarketplaceFetchError) Error() string {
	target := "search"
	if e.ItemID != "" {
		target = "item " + e.ItemID
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch %s failed with status %d", e.Marketplace, target, e.StatusCode)
	}
	return fmt.Sprintf("%s fetch %s failed: %v", e.Marketplace, target, e.Err)
}

func (e *MarketplaceFetchError) Unwrap() error { return e.Err }

// UnsupportedMarketplaceError 未注册的市场
type UnsupportedMarketplaceError struct {
	Marketplace string
}

func (e *UnsupportedMarketplaceError) Error() string {
	return fmt.Sprintf("unsupported marketplace: %q", e.Marketplace)
}
