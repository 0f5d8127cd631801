package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/upstream"
)

// CacheSizer 暴露徽章缓存当前条目数。
type CacheSizer interface {
	Len() int
}

// DiagnosticsOptions 汇总 /-/upstreams 需要展示的信息。
type DiagnosticsOptions struct {
	Registry *upstream.Registry
	Badges   CacheSizer
	AuthMode string
	Version  string
}

// RegisterDiagnosticRoutes 暴露 /-/upstreams 诊断接口，供运维确认上游地址与缓存规模。
func RegisterDiagnosticRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil || opts.Registry == nil {
		return
	}

	app.Get("/-/upstreams", func(c fiber.Ctx) error {
		payload := diagnosticsPayload{
			Version:   opts.Version,
			Upstreams: encodeUpstreams(opts.Registry.List(), opts.AuthMode),
		}
		if opts.Badges != nil {
			payload.BadgeCacheEntries = opts.Badges.Len()
		}
		return c.JSON(payload)
	})
}

// RegisterMetricsRoute 以 Prometheus 文本格式暴露 /-/metrics。
func RegisterMetricsRoute(app *fiber.App, collector *metrics.Collector) {
	if app == nil || collector == nil {
		return
	}
	handler := promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})
	app.Get("/-/metrics", adaptor.HTTPHandler(handler))
}

type diagnosticsPayload struct {
	Version           string            `json:"version,omitempty"`
	Upstreams         []upstreamPayload `json:"upstreams"`
	BadgeCacheEntries int               `json:"badge_cache_entries"`
}

type upstreamPayload struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	AuthMode string `json:"auth_mode,omitempty"`
}

func encodeUpstreams(list []upstream.Route, authMode string) []upstreamPayload {
	if len(list) == 0 {
		return []upstreamPayload{}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	result := make([]upstreamPayload, 0, len(list))
	for _, route := range list {
		item := upstreamPayload{
			Name:    route.Name,
			BaseURL: strings.TrimRight(route.BaseURL.String(), "/"),
		}
		if route.Name == upstream.NameChat {
			item.AuthMode = authMode
		}
		result = append(result, item)
	}
	return result
}
