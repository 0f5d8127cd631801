package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/stream-relay/stream-relay/internal/config"
)

// 已知的上游名称。
const (
	NameChat     = "chat"
	NameMetadata = "metadata"
	NameImages   = "images"
)

// Route 将上游名称与解析后的基础 URL 聚合在一起，避免每次请求重复解析配置。
type Route struct {
	Name string
	// BaseURL 在构造 Registry 时提前解析完成，末尾不带斜杠。
	BaseURL *url.URL
}

// Resolve 将 path 原样拼接到基础 URL 之后，不做任何路径清理。
func (r *Route) Resolve(path, rawQuery string) (*url.URL, error) {
	target := strings.TrimRight(r.BaseURL.String(), "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		target += "/"
	}
	target += path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("build %s url: %w", r.Name, err)
	}
	return parsed, nil
}

// Registry 提供上游名称到 Route 的查询能力。调用方应在启动阶段创建一次并复用。
type Registry struct {
	routes  map[string]*Route
	ordered []*Route
}

// NewRegistry 根据配置构建 chat/metadata/images 三个上游。
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &Registry{routes: make(map[string]*Route, 3)}
	entries := []struct {
		name string
		raw  string
	}{
		{NameChat, cfg.Upstreams.ChatBaseURL},
		{NameMetadata, cfg.Upstreams.MetadataBaseURL},
		{NameImages, cfg.Upstreams.ImagesBaseURL},
	}
	for _, entry := range entries {
		if err := registry.add(entry.name, entry.raw); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) add(name, raw string) error {
	key := normalizeName(name)
	if key == "" {
		return errors.New("upstream name required")
	}
	if _, exists := r.routes[key]; exists {
		return fmt.Errorf("duplicate upstream %s", key)
	}
	parsed, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return fmt.Errorf("invalid base url for upstream %s: %w", key, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid base url for upstream %s: %s", key, raw)
	}
	route := &Route{Name: key, BaseURL: parsed}
	r.routes[key] = route
	r.ordered = append(r.ordered, route)
	return nil
}

// Lookup 根据名称查找 Route。
func (r *Registry) Lookup(name string) (*Route, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.routes[normalizeName(name)]
	return route, ok
}

// List 返回按注册顺序排列的 Route 副本，用于诊断输出。
func (r *Registry) List() []Route {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	result := make([]Route, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
