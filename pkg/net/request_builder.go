package net

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// HTTPError 上游返回非 2xx
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// BuildAuthorizedRequest 带 Bearer 鉴权头的请求
func BuildAuthorizedRequest(ctx context.Context, client *resty.Client, accessToken string) *resty.Request {
	req := client.R().SetContext(ctx)
	if accessToken != "" {
		req.SetAuthToken(accessToken)
	}
	return req
}

// CheckResponse 统一处理网络错误与非 2xx 响应
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return &HTTPError{
			Method:     resp.Request.Method,
			URL:        resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Body:       body,
		}
	}
	return nil
}
