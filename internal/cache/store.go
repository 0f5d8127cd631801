package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理徽章正文的内存读写，实现必须支持并发访问。
type Store interface {
	// Get 返回 key 对应的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, key string) (Entry, error)

	// Put 写入条目；同一 key 重复写入时后写者生效。
	Put(ctx context.Context, key string, entry Entry) error

	// Len 返回当前条目数量，用于诊断输出。
	Len() int
}

// Entry 表示一份缓存的徽章图片，写入后不再修改。
type Entry struct {
	Body        []byte
	ContentType string
	StoredAt    time.Time
}

// ReadResult 组合 Entry 与命中标记，便于代理层设置缓存响应头。
type ReadResult struct {
	Entry Entry
	Hit   bool
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// NewStore 根据容量选择实现：size 为 0 时使用无界 map，大于 0 时使用 LRU。
func NewStore(size int) (Store, error) {
	switch {
	case size < 0:
		return nil, errors.New("cache size must not be negative")
	case size == 0:
		return newMemoryStore(), nil
	default:
		return newLRUStore(size)
	}
}
