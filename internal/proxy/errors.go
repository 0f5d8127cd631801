package proxy

import (
	"github.com/gofiber/fiber/v3"

	"github.com/stream-relay/stream-relay/internal/upstream"
)

// failurePolicy 描述某条路由如何把上游失败翻译成对外响应。
type failurePolicy struct {
	// status 是非校验失败时使用的固定状态码。
	status  int
	message string
	// passThrough 为 true 时透传上游状态码，并在 JSON 中附带 details。
	passThrough bool
	// plainText 为 true 时以纯文本输出 message。
	plainText bool
}

var (
	askPolicy = failurePolicy{
		status:  fiber.StatusInternalServerError,
		message: "Failed to fetch answer from OpenRouter",
	}
	badgePolicy = failurePolicy{
		status:    fiber.StatusNotFound,
		message:   "Badge not found",
		plainText: true,
	}
	matchesPolicy = failurePolicy{
		status:  fiber.StatusInternalServerError,
		message: "Failed to fetch matches",
	}
	streamPolicy = failurePolicy{
		status:  fiber.StatusInternalServerError,
		message: "Failed to fetch stream",
	}
	genericPolicy = failurePolicy{
		status:      fiber.StatusInternalServerError,
		message:     "Failed to fetch from upstream",
		passThrough: true,
	}
)

// translate 计算状态码与响应体。校验错误恒为 400 并使用错误自身的消息。
func (p failurePolicy) translate(err error) (int, any) {
	upErr, ok := upstream.AsError(err)
	if ok && upErr.Kind == upstream.KindValidation {
		return fiber.StatusBadRequest, fiber.Map{"error": upErr.Message}
	}
	if p.plainText {
		return p.status, p.message
	}
	if !p.passThrough {
		return p.status, fiber.Map{"error": p.message}
	}

	status := p.status
	details := err.Error()
	if ok && upErr.Kind == upstream.KindUpstreamStatus {
		if upErr.StatusCode > 0 {
			status = upErr.StatusCode
		}
		if upErr.Detail != "" {
			details = upErr.Detail
		}
	}
	return status, fiber.Map{"error": p.message, "details": details}
}

func (p failurePolicy) respond(c fiber.Ctx, err error) error {
	status, body := p.translate(err)
	if text, ok := body.(string); ok {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(status).SendString(text)
	}
	return c.Status(status).JSON(body)
}
