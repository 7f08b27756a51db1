// Package fetch 封装出站 HTTP。管道只依赖这里的 Client 接口，
// 测试时注入桩实现即可脱离网络
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// 默认请求头，模拟桌面浏览器，减少被风控拦截的概率
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Response 一次请求的结果。非 2xx 也会返回 Response，由调用方
// 决定是否当作错误（Shopify 管道要看到原始 404 才能走兜底）
type Response struct {
	StatusCode int
	Body       []byte
}

// OK 状态码是否在 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// EnsureSuccess 非 2xx 时返回 *StatusError
func (r *Response) EnsureSuccess() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode}
}

// StatusError HTTP 状态错误
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP 状态错误: %d", e.StatusCode)
}

// Client 出站请求接口
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// ==================== resty 实现 ====================

type restyClient struct {
	rc *resty.Client
}

// Options 客户端可调参数
type Options struct {
	Timeout    time.Duration // 零值取 20s
	RetryCount int
	UserAgent  string
	Proxy      string
}

// NewClient 创建 resty 客户端。非 2xx 不算传输错误
func NewClient(opts Options) Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetHeader("User-Agent", ua)
	if opts.Proxy != "" {
		rc.SetProxy(opts.Proxy)
	}

	return &restyClient{rc: rc}
}

func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req := c.rc.R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}
