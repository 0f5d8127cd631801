package upstream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/stream-relay/stream-relay/internal/metrics"
)

// FallbackReply 在上游未返回任何回答内容时使用。
const FallbackReply = "Sorry, I couldn't answer that."

// ChatOptions 汇总 ChatClient 的依赖。
type ChatOptions struct {
	HTTPClient *http.Client
	Route      *Route
	APIKey     string
	Model      string
	Metrics    *metrics.Collector
}

// ChatClient 通过 OpenAI 兼容协议访问 OpenRouter 的 chat completions 接口。
type ChatClient struct {
	client  *openai.Client
	model   string
	metrics *metrics.Collector
}

// NewChatClient 以 Route 的基础 URL 构造 go-openai 客户端，请求落在 {base}/chat/completions。
func NewChatClient(opts ChatOptions) (*ChatClient, error) {
	if opts.Route == nil || opts.Route.BaseURL == nil {
		return nil, errors.New("chat route is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("chat model is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.Route.BaseURL.String(), "/")
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return &ChatClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		metrics: opts.Metrics,
	}, nil
}

// Ask 以单条 user 消息提问，返回第一个 choice 的内容；内容缺失时返回 FallbackReply。
func (c *ChatClient) Ask(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", NewValidationError("Question is required")
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		classified := classifyChatError(err)
		c.metrics.RecordUpstream(NameChat, classified.StatusCode, time.Since(started))
		return "", classified
	}
	c.metrics.RecordUpstream(NameChat, http.StatusOK, time.Since(started))
	return replyText(resp), nil
}

func replyText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return FallbackReply
	}
	if content := resp.Choices[0].Message.Content; content != "" {
		return content
	}
	return FallbackReply
}

// classifyChatError 将 go-openai 的错误映射为 *Error。
func classifyChatError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &Error{
			Kind:       KindUpstreamStatus,
			Upstream:   NameChat,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    "chat completion rejected",
			Detail:     apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &Error{
			Kind:       KindUpstreamStatus,
			Upstream:   NameChat,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    "chat completion failed",
			Detail:     reqErr.Error(),
			Err:        err,
		}
	}
	return newNetworkError(NameChat, err)
}
