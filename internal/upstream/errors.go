package upstream

import (
	"errors"
	"fmt"
)

// Kind 区分失败类型，决定对外的状态码映射。
type Kind string

const (
	// KindValidation 表示调用方输入缺失或格式错误。
	KindValidation Kind = "validation"
	// KindNetwork 表示 DNS、连接、超时等传输层失败。
	KindNetwork Kind = "network_failure"
	// KindUpstreamStatus 表示上游返回了非 2xx 状态码。
	KindUpstreamStatus Kind = "upstream_status"
)

// ErrUnknownUpstream 表示请求了未注册的上游名称。
var ErrUnknownUpstream = errors.New("unknown upstream")

// Error 是上游调用失败的统一描述。
type Error struct {
	Kind       Kind
	Upstream   string
	StatusCode int
	Message    string
	// Detail 保存上游返回的原始错误正文（若有），仅用于日志与透传模式。
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstreamStatus:
		return fmt.Sprintf("%s: %s (status %d)", e.Upstream, e.Message, e.StatusCode)
	case KindValidation:
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Upstream, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Upstream, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError 构造调用方输入错误。
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func newNetworkError(upstream string, err error) *Error {
	return &Error{
		Kind:     KindNetwork,
		Upstream: upstream,
		Message:  "upstream request failed",
		Err:      err,
	}
}

func newStatusError(upstream string, status int, detail string) *Error {
	return &Error{
		Kind:       KindUpstreamStatus,
		Upstream:   upstream,
		StatusCode: status,
		Message:    "upstream returned non-success status",
		Detail:     detail,
	}
}

// AsError 从错误链中取出 *Error。
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsKind 判断错误链中是否包含指定类型的 *Error。
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
