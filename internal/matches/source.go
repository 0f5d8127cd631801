// Package matches provides the popular live match list served at
// /api/matches/live/popular. Records are opaque JSON objects; the relay never
// interprets their schema, it only preserves order.
package matches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/stream-relay/stream-relay/internal/config"
	"github.com/stream-relay/stream-relay/internal/upstream"
)

// Source 返回按顺序排列的比赛记录。
type Source interface {
	Popular(ctx context.Context) ([]json.RawMessage, error)
}

// Fetcher 抽象上游调用。
type Fetcher interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// PopularPath 是 metadata 上游上的热门比赛路径。
const PopularPath = "/matches/live/popular"

// NewSource 根据 Global.MatchesSource 选择实现。
func NewSource(cfg *config.Config, fetcher Fetcher) (Source, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	switch cfg.Global.MatchesSource {
	case config.MatchesSourceUpstream:
		return NewUpstreamSource(fetcher)
	case config.MatchesSourceStatic, "":
		return NewStaticSource(cfg.Global.MatchesFile)
	default:
		return nil, fmt.Errorf("unsupported matches source %q", cfg.Global.MatchesSource)
	}
}

// StaticSource 在启动时读取 JSON 数组文件；未配置文件时返回空列表。
type StaticSource struct {
	records []json.RawMessage
}

// NewStaticSource 解析 path 指向的 JSON 数组。path 为空时得到空列表。
func NewStaticSource(path string) (*StaticSource, error) {
	if path == "" {
		return &StaticSource{records: []json.RawMessage{}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matches file: %w", err)
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("parse matches file %s: %w", path, err)
	}
	return &StaticSource{records: records}, nil
}

// Popular 返回记录副本，调用方修改切片不会影响后续请求。
func (s *StaticSource) Popular(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(s.records))
	copy(out, s.records)
	return out, nil
}

// UpstreamSource 透传 metadata 上游的热门比赛列表。
type UpstreamSource struct {
	fetcher Fetcher
}

// NewUpstreamSource 构造上游数据源。
func NewUpstreamSource(fetcher Fetcher) (*UpstreamSource, error) {
	if fetcher == nil {
		return nil, errors.New("matches fetcher is required")
	}
	return &UpstreamSource{fetcher: fetcher}, nil
}

func (s *UpstreamSource) Popular(ctx context.Context) ([]json.RawMessage, error) {
	resp, err := s.fetcher.Do(ctx, upstream.Request{
		Upstream: upstream.NameMetadata,
		Path:     PopularPath,
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode popular matches: %w", err)
	}
	return records, nil
}

func decodeRecords(raw []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}
