package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/upstream"
)

// BadgeContentType 是所有徽章响应固定使用的 Content-Type。
const BadgeContentType = "image/webp"

// Fetcher 抽象上游调用，测试中可替换为计数桩。
type Fetcher interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// BadgeCache 在 Store 之上实现 get-or-fetch 流程，进程启动时构造一次并注入路由。
type BadgeCache struct {
	store   Store
	fetcher Fetcher
	metrics *metrics.Collector
}

// NewBadgeCache 构造徽章缓存；metrics 可为 nil。
func NewBadgeCache(store Store, fetcher Fetcher, collector *metrics.Collector) (*BadgeCache, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if fetcher == nil {
		return nil, errors.New("badge fetcher is required")
	}
	return &BadgeCache{store: store, fetcher: fetcher, metrics: collector}, nil
}

// GetOrFetch 命中时直接返回缓存正文，不访问上游；未命中时拉取
// {images_base}/{badgeID}.webp，仅在成功时写入缓存。失败原样返回 *upstream.Error。
func (b *BadgeCache) GetOrFetch(ctx context.Context, badgeID string) (*ReadResult, error) {
	if badgeID == "" {
		return nil, upstream.NewValidationError("badge id is required")
	}

	entry, err := b.store.Get(ctx, badgeID)
	if err == nil {
		b.metrics.RecordCacheLookup(true)
		return &ReadResult{Entry: entry, Hit: true}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	b.metrics.RecordCacheLookup(false)

	resp, err := b.fetcher.Do(ctx, upstream.Request{
		Upstream: upstream.NameImages,
		Path:     "/" + badgeID + ".webp",
	})
	if err != nil {
		return nil, err
	}

	entry = Entry{
		Body:        resp.Body,
		ContentType: BadgeContentType,
		StoredAt:    time.Now().UTC(),
	}
	if err := b.store.Put(ctx, strings.Clone(badgeID), entry); err != nil {
		return nil, err
	}
	b.metrics.RecordCacheStore()
	return &ReadResult{Entry: entry, Hit: false}, nil
}

// Len 返回已缓存的徽章数量。
func (b *BadgeCache) Len() int {
	return b.store.Len()
}
