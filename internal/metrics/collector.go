// Package metrics 汇总 Prometheus 指标：徽章缓存命中率、上游调用结果与各路由响应码。
// Collector 使用独立的 prometheus.Registry，便于测试隔离；所有方法对 nil 接收者安全，
// 调用方可以在不关心指标时直接传 nil。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "stream_relay"

// Collector 持有全部指标实例。
type Collector struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	cacheStores      prometheus.Counter
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	responses        *prometheus.CounterVec
}

// NewCollector 在 registry 上注册全部指标；registry 为空时新建一个并附带 Go/进程指标。
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badge_cache",
			Name:      "lookups_total",
			Help:      "Badge cache lookups by result (hit/miss).",
		}, []string{"result"}),
		cacheStores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "badge_cache",
			Name:      "stores_total",
			Help:      "Badge images written into the cache.",
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Outbound upstream requests by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Outbound upstream request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"upstream"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Responses sent to clients by route and status code.",
		}, []string{"route", "code"}),
	}

	registry.MustRegister(
		c.cacheLookups,
		c.cacheStores,
		c.upstreamRequests,
		c.upstreamDuration,
		c.responses,
	)
	return c
}

// Registry 返回底层 registry，供 /-/metrics 暴露。
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordCacheLookup 记录一次徽章缓存查询。
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheStore 记录一次缓存写入。
func (c *Collector) RecordCacheStore() {
	if c == nil {
		return
	}
	c.cacheStores.Inc()
}

// RecordUpstream 记录一次上游调用；status 为 0 表示传输层失败。
func (c *Collector) RecordUpstream(upstream string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(upstream, Outcome(status)).Inc()
	c.upstreamDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

// RecordResponse 记录返回给客户端的状态码。
func (c *Collector) RecordResponse(route string, status int) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Outcome 将上游状态码归类为 network_error/2xx/4xx/5xx 等标签值。
func Outcome(status int) string {
	switch {
	case status <= 0:
		return "network_error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
