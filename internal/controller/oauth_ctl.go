package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/service"
)

// OAuth 动作
const (
	actionGetAuthURL   = "get_auth_url"
	actionExchangeCode = "exchange_code"
	actionRefreshToken = "refresh_token"
)

// OAuthController 市场授权
type OAuthController struct {
	authService *service.AuthService
}

func NewOAuthController(s *service.AuthService) *OAuthController {
	return &OAuthController{authService: s}
}

// oauthRequest marketplace-oauth 请求体
type oauthRequest struct {
	Marketplace  string `json:"marketplace" binding:"required"`
	Action       string `json:"action" binding:"required"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
	ConnectionID int64  `json:"connection_id"`
}

// Handle 授权动作分发
// @Summary 市场授权
// @Description action: get_auth_url | exchange_code | refresh_token
// @Tags OAuth
// @Accept json
// @Produce json
// @Param body body oauthRequest true "请求体"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/marketplace-oauth [post]
func (ctrl *OAuthController) Handle(c *gin.Context) {
	var req oauthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "marketplace and action are required")
		return
	}

	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	switch req.Action {
	case actionGetAuthURL:
		authURL, state, err := ctrl.authService.GenerateAuthURL(ctx, userID, req.Marketplace, req.RedirectURI)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"authUrl": authURL, "state": state})

	case actionExchangeCode:
		if req.Code == "" {
			badRequest(c, "code is required")
			return
		}
		conn, data, err := ctrl.authService.Exchange(ctx, service.ExchangeRequest{
			Marketplace: req.Marketplace,
			Code:        req.Code,
			RedirectURI: req.RedirectURI,
			UserID:      userID,
			State:       req.State,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "connection": conn, "tokenData": data})

	case actionRefreshToken:
		if req.ConnectionID <= 0 {
			badRequest(c, "connection_id is required")
			return
		}
		conn, data, err := ctrl.authService.RefreshByID(ctx, userID, req.ConnectionID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "connection": conn, "tokenData": data})

	default:
		badRequest(c, "unknown action: "+req.Action)
	}
}

// Callback 浏览器授权回调
// @Summary 授权回调
// @Description 接收 code 和 state，换取 Token 并入库
// @Tags OAuth
// @Produce json
// @Param code query string true "授权码"
// @Param state query string true "state"
// @Success 200 {object} map[string]interface{}
// @Router /api/oauth/callback [get]
func (ctrl *OAuthController) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "authorization denied: " + errParam,
			"code":    "access_denied",
		})
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		badRequest(c, "code and state are required")
		return
	}

	conn, data, err := ctrl.authService.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connection": conn, "tokenData": data})
}

// ListConnections 当前用户的连接
// @Summary 连接列表
// @Tags OAuth
// @Produce json
// @Router /api/connections [get]
func (ctrl *OAuthController) ListConnections(c *gin.Context) {
	conns, err := ctrl.authService.ListConnections(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connections": conns})
}

// Disconnect 断开连接
// @Summary 断开连接
// @Tags OAuth
// @Param id path int true "连接 ID"
// @Router /api/connections/{id}/disconnect [post]
func (ctrl *OAuthController) Disconnect(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	conn, err := ctrl.authService.Disconnect(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connection": conn})
}
