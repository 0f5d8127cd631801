package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/stream-relay/stream-relay/internal/cache"
	"github.com/stream-relay/stream-relay/internal/logging"
	"github.com/stream-relay/stream-relay/internal/matches"
	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/server"
	"github.com/stream-relay/stream-relay/internal/upstream"
)

// 路由名称，用于日志与指标标签。
const (
	RouteHealth  = "health"
	RouteAsk     = "ask"
	RouteBadge   = "badge"
	RouteMatches = "matches"
	RouteStream  = "stream"
	RouteGeneric = "proxy"
)

// CacheHitHeader 标记徽章响应是否来自内存缓存。
const CacheHitHeader = "X-Stream-Relay-Cache-Hit"

// Fetcher 抽象对命名上游的 GET 调用。
type Fetcher interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// ChatAsker 抽象 chat completion 调用。
type ChatAsker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// BadgeSource 抽象徽章缓存的 get-or-fetch。
type BadgeSource interface {
	GetOrFetch(ctx context.Context, badgeID string) (*cache.ReadResult, error)
}

// Options 汇总 Handler 的依赖，Metrics 可为 nil。
type Options struct {
	Client  Fetcher
	Chat    ChatAsker
	Badges  BadgeSource
	Matches matches.Source
	Logger  *logrus.Logger
	Metrics *metrics.Collector
}

// Handler 实现全部对外路由：健康检查、chat 转发、徽章缓存、比赛列表、直播流元数据与通用代理。
// 每个请求独立处理，唯一共享的可变状态是注入的徽章缓存。
type Handler struct {
	client  Fetcher
	chat    ChatAsker
	badges  BadgeSource
	matches matches.Source
	logger  *logrus.Logger
	metrics *metrics.Collector
}

// NewHandler constructs the relay handler from its collaborators.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		client:  opts.Client,
		chat:    opts.Chat,
		badges:  opts.Badges,
		matches: opts.Matches,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Register 实现 server.RouteRegistrar。具体路由先于 /api/* 通配注册。
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.guard(RouteHealth, h.handleHealth))
	app.Post("/ask", h.guard(RouteAsk, h.handleAsk))
	app.Get("/api/images/badge/:badgeId.webp", h.guard(RouteBadge, h.handleBadge))
	app.Get("/api/matches/live/popular", h.guard(RouteMatches, h.handleMatches))
	app.Get("/api/stream/:source/:id", h.guard(RouteStream, h.handleStream))
	app.Get("/api/*", h.guard(RouteGeneric, h.handleGeneric))
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(healthResponse{Status: "ok", Message: "Backend is running!"})
}

type askRequest struct {
	Question any `json:"question"`
}

// handleAsk 校验 question 后转发到 chat 上游；非字符串或缺失的 question 一律视为缺失。
func (h *Handler) handleAsk(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	var payload askRequest
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		payload = askRequest{}
	}
	question, _ := payload.Question.(string)

	reply, err := h.chat.Ask(detachedContext(c), question)
	if err != nil {
		h.logResult(c, RouteAsk, upstream.NameChat, requestID, false, started, err)
		return askPolicy.respond(c, err)
	}
	h.logResult(c, RouteAsk, upstream.NameChat, requestID, false, started, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"reply": reply})
}

func (h *Handler) handleBadge(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	// Params 指向会被复用的请求缓冲区，写入缓存前必须复制。
	badgeID := strings.Clone(c.Params("badgeId"))

	result, err := h.badges.GetOrFetch(detachedContext(c), badgeID)
	if err != nil {
		h.logResult(c, RouteBadge, upstream.NameImages, requestID, false, started, err)
		return badgePolicy.respond(c, err)
	}
	h.logResult(c, RouteBadge, upstream.NameImages, requestID, result.Hit, started, nil)

	c.Set(fiber.HeaderContentType, cache.BadgeContentType)
	c.Set(CacheHitHeader, strconv.FormatBool(result.Hit))
	return c.Status(fiber.StatusOK).Send(result.Entry.Body)
}

func (h *Handler) handleMatches(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	records, err := h.matches.Popular(detachedContext(c))
	if err != nil {
		h.logResult(c, RouteMatches, upstream.NameMetadata, requestID, false, started, err)
		return matchesPolicy.respond(c, err)
	}
	h.logResult(c, RouteMatches, upstream.NameMetadata, requestID, false, started, nil)
	return c.Status(fiber.StatusOK).JSON(records)
}

func (h *Handler) handleStream(c fiber.Ctx) error {
	path := "/stream/" + c.Params("source") + "/" + c.Params("id")
	return h.relay(c, RouteStream, path, "", streamPolicy)
}

// handleGeneric 将 /api/<rest> 原样映射到 metadata 上游的 <base>/<rest>，查询串一并转发。
func (h *Handler) handleGeneric(c fiber.Ctx) error {
	rawPath := string(c.Request().URI().PathOriginal())
	if idx := strings.IndexByte(rawPath, '?'); idx >= 0 {
		rawPath = rawPath[:idx]
	}
	path := strings.TrimPrefix(rawPath, "/api")
	rawQuery := string(c.Request().URI().QueryString())
	return h.relay(c, RouteGeneric, path, rawQuery, genericPolicy)
}

// relay 以 GET 访问 metadata 上游并原样返回正文。
func (h *Handler) relay(c fiber.Ctx, route, path, rawQuery string, policy failurePolicy) error {
	started := time.Now()
	requestID := server.RequestID(c)

	header := http.Header{}
	if ua := c.Get(fiber.HeaderUserAgent); ua != "" {
		header.Set(fiber.HeaderUserAgent, ua)
	}

	resp, err := h.client.Do(detachedContext(c), upstream.Request{
		Upstream: upstream.NameMetadata,
		Method:   http.MethodGet,
		Path:     path,
		RawQuery: rawQuery,
		Header:   header,
	})
	if err != nil {
		h.logResult(c, route, upstream.NameMetadata, requestID, false, started, err)
		return policy.respond(c, err)
	}
	h.logResult(c, route, upstream.NameMetadata, requestID, false, started, nil)

	contentType := resp.ContentType
	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(fiber.StatusOK).Send(resp.Body)
}

// detachedContext 返回与入站连接解绑的 context：客户端提前断开时上游调用仍会完成。
func detachedContext(c fiber.Ctx) context.Context {
	return detach(c.Context())
}

func detach(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithoutCancel(parent)
}

func (h *Handler) logResult(
	c fiber.Ctx,
	route string,
	upstreamName string,
	requestID string,
	cacheHit bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(route, upstreamName, c.Method(), c.Path(), cacheHit)
	fields["action"] = "proxy"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		if upErr, ok := upstream.AsError(err); ok {
			fields["error_kind"] = string(upErr.Kind)
			if upErr.StatusCode > 0 {
				fields["upstream_status"] = upErr.StatusCode
			}
			if upErr.Detail != "" {
				fields["upstream_detail"] = upErr.Detail
			}
			if upErr.Kind == upstream.KindValidation {
				h.logger.WithFields(fields).Warn("proxy_rejected")
				return
			}
		}
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}
