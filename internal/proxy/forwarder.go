package proxy

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/stream-relay/stream-relay/internal/server"
)

// guard 包装路由 handler：捕获 handler 内的 panic 并返回 500 JSON，
// 同时按路由记录最终响应码。
func (h *Handler) guard(route string, next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		requestID := server.RequestID(c)
		defer func() {
			if r := recover(); r != nil {
				err = h.respondHandlerPanic(c, route, r, requestID)
			}
			h.metrics.RecordResponse(route, responseStatus(c, err))
		}()
		return next(c)
	}
}

// responseStatus 返回最终响应码：handler 返回错误时由 ErrorHandler 稍后写入状态，
// 因此按 *fiber.Error 的 Code 推算，其余错误记为 500。
func responseStatus(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) respondHandlerPanic(c fiber.Ctx, route string, recovered interface{}, requestID string) error {
	h.logHandlerError(route, "handler_panic", fmt.Errorf("panic: %v", recovered), requestID)
	setRequestIDHeader(c, requestID)
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "handler_panic"})
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (h *Handler) logHandlerError(route, code string, err error, requestID string) {
	if h.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action": "proxy",
		"route":  route,
		"error":  code,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	h.logger.WithFields(fields).Error(err.Error())
}
