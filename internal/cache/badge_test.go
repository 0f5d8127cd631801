package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stream-relay/stream-relay/internal/metrics"
	"github.com/stream-relay/stream-relay/internal/upstream"
)

type stubFetcher struct {
	calls atomic.Int32
	paths sync.Map
	fn    func(req upstream.Request) (*upstream.Response, error)
}

func (s *stubFetcher) Do(_ context.Context, req upstream.Request) (*upstream.Response, error) {
	s.calls.Add(1)
	s.paths.Store(req.Path, req.Upstream)
	return s.fn(req)
}

func okFetcher(body string) *stubFetcher {
	return &stubFetcher{fn: func(req upstream.Request) (*upstream.Response, error) {
		return &upstream.Response{StatusCode: http.StatusOK, Body: []byte(body), ContentType: "image/webp"}, nil
	}}
}

func newTestBadgeCache(t *testing.T, fetcher Fetcher, collector *metrics.Collector) *BadgeCache {
	t.Helper()
	store, err := NewStore(0)
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	badges, err := NewBadgeCache(store, fetcher, collector)
	if err != nil {
		t.Fatalf("new badge cache error: %v", err)
	}
	return badges
}

func TestBadgeCacheHitSkipsUpstream(t *testing.T) {
	fetcher := okFetcher("\x52\x49\x46\x46webp")
	collector := metrics.NewCollector(prometheus.NewRegistry())
	badges := newTestBadgeCache(t, fetcher, collector)
	ctx := context.Background()

	first, err := badges.GetOrFetch(ctx, "abc")
	if err != nil {
		t.Fatalf("first fetch error: %v", err)
	}
	if first.Hit {
		t.Fatalf("first lookup should be a miss")
	}
	if first.Entry.ContentType != BadgeContentType {
		t.Fatalf("unexpected content type: %s", first.Entry.ContentType)
	}
	if _, ok := fetcher.paths.Load("/abc.webp"); !ok {
		t.Fatalf("expected fetch of /abc.webp")
	}

	for i := 0; i < 3; i++ {
		again, err := badges.GetOrFetch(ctx, "abc")
		if err != nil {
			t.Fatalf("cached fetch error: %v", err)
		}
		if !again.Hit {
			t.Fatalf("subsequent lookup should hit")
		}
		if string(again.Entry.Body) != string(first.Entry.Body) {
			t.Fatalf("cached bytes differ from first fetch")
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", got)
	}
	if badges.Len() != 1 {
		t.Fatalf("expected one cached badge, got %d", badges.Len())
	}

	count, err := testutil.GatherAndCount(collector.Registry(), "stream_relay_badge_cache_lookups_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected hit and miss series, got %d", count)
	}
}

func TestBadgeCacheDoesNotCacheFailures(t *testing.T) {
	fetcher := &stubFetcher{fn: func(req upstream.Request) (*upstream.Response, error) {
		return nil, &upstream.Error{Kind: upstream.KindUpstreamStatus, Upstream: upstream.NameImages, StatusCode: http.StatusNotFound}
	}}
	badges := newTestBadgeCache(t, fetcher, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := badges.GetOrFetch(ctx, "unknown123")
		if !upstream.IsKind(err, upstream.KindUpstreamStatus) {
			t.Fatalf("expected upstream status error, got %v", err)
		}
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("failures must not be cached, expected 2 calls, got %d", got)
	}
	if badges.Len() != 0 {
		t.Fatalf("no entry should be stored after failure")
	}
}

func TestBadgeCacheRejectsEmptyID(t *testing.T) {
	fetcher := okFetcher("x")
	badges := newTestBadgeCache(t, fetcher, nil)
	if _, err := badges.GetOrFetch(context.Background(), ""); !upstream.IsKind(err, upstream.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatalf("empty id should not reach upstream")
	}
}

func TestBadgeCacheConcurrentMisses(t *testing.T) {
	fetcher := okFetcher("same-bytes")
	badges := newTestBadgeCache(t, fetcher, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := badges.GetOrFetch(ctx, "shared")
			if err != nil {
				errs <- err
				return
			}
			if string(res.Entry.Body) != "same-bytes" {
				errs <- errors.New("unexpected body")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent fetch failed: %v", err)
	}
	if badges.Len() != 1 {
		t.Fatalf("expected a single cached entry, got %d", badges.Len())
	}
	if calls := fetcher.calls.Load(); calls < 1 || calls > 16 {
		t.Fatalf("unexpected upstream call count %d", calls)
	}
}

func TestNewBadgeCacheRequiresDependencies(t *testing.T) {
	store, _ := NewStore(0)
	if _, err := NewBadgeCache(nil, okFetcher("x"), nil); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewBadgeCache(store, nil, nil); err == nil {
		t.Fatalf("expected error without fetcher")
	}
}
