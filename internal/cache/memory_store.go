package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// memoryStore 基于 sync.Map 的无界存储，条目在进程生命周期内不会被淘汰。
type memoryStore struct {
	entries sync.Map
	count   atomic.Int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (s *memoryStore) Get(ctx context.Context, key string) (Entry, error) {
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	default:
	}

	value, ok := s.entries.Load(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return value.(Entry), nil
}

func (s *memoryStore) Put(ctx context.Context, key string, entry Entry) error {
	if key == "" {
		return errors.New("cache key required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, loaded := s.entries.Swap(key, entry); !loaded {
		s.count.Add(1)
	}
	return nil
}

func (s *memoryStore) Len() int {
	return int(s.count.Load())
}
