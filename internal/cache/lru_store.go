package cache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruStore 在 BadgeCacheSize > 0 时启用，超过容量后淘汰最久未使用的徽章。
type lruStore struct {
	entries *lru.Cache[string, Entry]
}

func newLRUStore(size int) (*lruStore, error) {
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &lruStore{entries: entries}, nil
}

func (s *lruStore) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	entry, ok := s.entries.Get(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *lruStore) Put(ctx context.Context, key string, entry Entry) error {
	if key == "" {
		return errors.New("cache key required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries.Add(key, entry)
	return nil
}

func (s *lruStore) Len() int {
	return s.entries.Len()
}
