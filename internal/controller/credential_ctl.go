package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_hub_202610/internal/middleware"
	"storefront_hub_202610/internal/service"
)

// CredentialController 市场应用凭证
type CredentialController struct {
	credentialService *service.CredentialService
}

func NewCredentialController(s *service.CredentialService) *CredentialController {
	return &CredentialController{credentialService: s}
}

type credentialRequest struct {
	Marketplace string            `json:"marketplace" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// Save 保存凭证
// @Summary 保存市场应用凭证
// @Tags Credential
// @Accept json
// @Produce json
// @Router /api/save-marketplace-credentials [post]
func (ctrl *CredentialController) Save(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "marketplace and credentials are required")
		return
	}

	names, err := ctrl.credentialService.Save(c.Request.Context(), middleware.GetUserID(c), req.Marketplace, req.Credentials)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "credentials saved",
		"secretNames": names,
	})
}

// Test 测试凭证
// @Summary 测试市场 API 连通性
// @Tags Credential
// @Accept json
// @Produce json
// @Router /api/test-marketplace-api [post]
func (ctrl *CredentialController) Test(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "marketplace and credentials are required")
		return
	}

	msg, err := ctrl.credentialService.Test(c.Request.Context(), req.Marketplace, req.Credentials)
	if err != nil {
		status, kind := errorKind(err)
		if status == http.StatusInternalServerError {
			// 探测失败属于上游问题
			status, kind = http.StatusBadGateway, "marketplace_error"
		}
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error(), "code": kind})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
