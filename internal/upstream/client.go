package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/server"
)

// Request 描述一次发往命名上游的请求。
type Request struct {
	Upstream string
	Method   string
	// Path 原样拼接在上游基础 URL 之后。
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Response 是成功（2xx）的上游响应，正文已完整读入内存。
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

// Options 汇总 Client 的依赖。
type Options struct {
	HTTPClient *http.Client
	Registry   *Registry
	UserAgent  string
	Metrics    *metrics.Collector
}

// Client 通过共享 http.Client 访问已注册的上游。
type Client struct {
	http      *http.Client
	registry  *Registry
	userAgent string
	metrics   *metrics.Collector
}

// NewClient 构造上游客户端，HTTPClient 与 Registry 不能为空。
func NewClient(opts Options) (*Client, error) {
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("upstream registry is required")
	}
	return &Client{
		http:      opts.HTTPClient,
		registry:  opts.Registry,
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
	}, nil
}

// Registry 返回客户端使用的上游注册表。
func (c *Client) Registry() *Registry {
	return c.registry
}

// Do 发出请求并读取完整正文。传输失败返回 KindNetwork，非 2xx 返回 KindUpstreamStatus
// 并携带上游正文作为 Detail。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	route, ok := c.registry.Lookup(req.Upstream)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUpstream, req.Upstream)
	}

	target, err := route.Resolve(req.Path, req.RawQuery)
	if err != nil {
		return nil, newNetworkError(route.Name, err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, newNetworkError(route.Name, err)
	}
	if req.Header != nil {
		server.CopyHeaders(httpReq.Header, req.Header)
	}
	if httpReq.Header.Get("User-Agent") == "" && c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordUpstream(route.Name, 0, time.Since(started))
		return nil, newNetworkError(route.Name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	c.metrics.RecordUpstream(route.Name, resp.StatusCode, time.Since(started))
	if err != nil {
		return nil, newNetworkError(route.Name, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newStatusError(route.Name, resp.StatusCode, string(payload))
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        payload,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         target.String(),
	}, nil
}
