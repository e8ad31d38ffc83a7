package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/service"
)

// ==================== 统一错误响应 ====================

// errorKind 错误分类，写入响应的 code 字段
func errorKind(err error) (int, string) {
	var (
		exchangeErr    *service.OAuthExchangeError
		refreshErr     *service.TokenRefreshError
		expiredErr     *service.TokenExpiredError
		fetchErr       *service.MarketplaceFetchError
		unsupportedErr *service.UnsupportedMarketplaceError
	)

	switch {
	case errors.As(err, &unsupportedErr):
		return http.StatusBadRequest, "unsupported_marketplace"
	case errors.Is(err, service.ErrInvalidImportRequest),
		errors.Is(err, service.ErrInvalidMarkup),
		errors.Is(err, service.ErrMissingCredential):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.As(err, &expiredErr):
		return http.StatusUnauthorized, "token_expired"
	case errors.As(err, &refreshErr):
		return http.StatusUnauthorized, "token_refresh_failed"
	case errors.Is(err, service.ErrConnectionNotFound),
		errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrImportInProgress):
		return http.StatusConflict, "import_in_progress"
	case errors.Is(err, service.ErrConnectionInactive):
		return http.StatusConflict, "connection_inactive"
	case errors.As(err, &exchangeErr):
		return http.StatusBadGateway, "oauth_exchange_failed"
	case errors.Is(err, service.ErrNotImplemented):
		return http.StatusNotImplemented, "not_implemented"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "marketplace_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError 按错误类型写出状态码，5xx 不透出内部细节
func writeError(c *gin.Context, err error) {
	status, kind := errorKind(err)
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    kind,
	})
}

// badRequest 参数错误
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"code":    "invalid_request",
	})
}

// pathID 解析路径中的数字 ID
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
