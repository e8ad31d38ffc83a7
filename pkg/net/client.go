package net

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions REST 客户端选项
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
	Debug      bool
}

// DefaultClientOptions 默认选项
func DefaultClientOptions(baseURL string) ClientOptions {
	return ClientOptions{
		BaseURL:    baseURL,
		Timeout:    20 * time.Second,
		RetryCount: 2,
		UserAgent:  "Storefront-Hub/1.0",
	}
}

// NewRestClient 创建统一配置的 Resty 客户端
// 只对网络层错误重试，4xx/5xx 交给调用方判断
func NewRestClient(opts ClientOptions) *resty.Client {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetDebug(opts.Debug).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	client.AddRetryCondition(func(_ *resty.Response, err error) bool {
		return err != nil
	})

	return client
}
