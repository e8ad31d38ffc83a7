package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const pkceCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

// PKCE 授权码流程的 verifier / challenge 对
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GenerateRandomString 生成指定长度的随机字符串 (RFC 7636 unreserved 字符集)
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(length)
	for _, v := range b {
		sb.WriteByte(pkceCharset[int(v)%len(pkceCharset)])
	}
	return sb.String(), nil
}

// NewPKCE 生成 64 位 verifier 和 S256 challenge
func NewPKCE() (PKCE, error) {
	verifier, err := GenerateRandomString(64)
	if err != nil {
		return PKCE{}, err
	}
	return PKCE{
		Verifier:  verifier,
		Challenge: CodeChallengeS256(verifier),
		Method:    "S256",
	}, nil
}

// CodeChallengeS256 Base64UrlEncode(SHA256(verifier))，不带填充
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
