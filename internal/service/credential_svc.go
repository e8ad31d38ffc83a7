package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"storefront_hub_202610/internal/model"
	"storefront_hub_202610/internal/repository"
)

// requiredCredentialFields 每个市场必须提供的字段
var requiredCredentialFields = []string{"client_id", "client_secret"}

// allowedCredentialFields 允许保存的字段
var allowedCredentialFields = map[string]bool{
	"client_id":     true,
	"client_secret": true,
	"redirect_uri":  true,
	"region":        true,
	"partner_id":    true,
	"partner_key":   true,
}

// CredentialSecretName 统一的密钥名称，如 MERCADOLIVRE_CLIENT_ID
func CredentialSecretName(marketplace, field string) string {
	return strings.ToUpper(marketplace + "_" + field)
}

// CredentialService 市场应用凭证的保存与连通性测试
type CredentialService struct {
	credRepo repository.CredentialRepository
	adapters *AdapterRegistry
	logger   *zap.Logger
}

// NewCredentialService 创建凭证服务
func NewCredentialService(credRepo repository.CredentialRepository, adapters *AdapterRegistry, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{credRepo: credRepo, adapters: adapters, logger: logger}
}

// Save 校验后保存，返回写入的密钥名称
func (s *CredentialService) Save(ctx context.Context, userID, marketplace string, credentials map[string]string) ([]string, error) {
	if _, err := s.adapters.Get(marketplace); err != nil {
		return nil, err
	}
	if err := validateCredentials(credentials); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(credentials))
	for field, value := range credentials {
		if allowedCredentialFields[field] && strings.TrimSpace(value) != "" {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	rows := make([]model.MarketplaceCredential, 0, len(fields))
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		name := CredentialSecretName(marketplace, field)
		rows = append(rows, model.MarketplaceCredential{
			UserID:      userID,
			Marketplace: marketplace,
			SecretName:  name,
			SecretValue: strings.TrimSpace(credentials[field]),
		})
		names = append(names, name)
	}

	if err := s.credRepo.SaveAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("保存凭证失败: %w", err)
	}

	s.logger.Info("marketplace credentials saved",
		zap.String("user_id", userID),
		zap.String("marketplace", marketplace),
		zap.Strings("secret_names", names),
	)
	return names, nil
}

// Test 调用市场 API 验证凭证
func (s *CredentialService) Test(ctx context.Context, marketplace string, credentials map[string]string) (string, error) {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return "", err
	}
	if err = validateCredentials(credentials); err != nil {
		return "", err
	}
	if err = adapter.VerifyCredentials(ctx, credentials); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s API connection successful", marketplace), nil
}

func validateCredentials(credentials map[string]string) error {
	for _, field := range requiredCredentialFields {
		if strings.TrimSpace(credentials[field]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredential, field)
		}
	}
	return nil
}
