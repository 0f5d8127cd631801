package upstream

import (
	"net/http"
	"testing"
	"time"

	"github.com/stream-relay/stream-relay/internal/config"
)

// testConfig 构造三个上游都指向同一测试服务器的配置。
func testConfig(base string) *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{
			ListenPort:      5000,
			LogLevel:        "info",
			UpstreamTimeout: config.Duration(2 * time.Second),
			MatchesSource:   config.MatchesSourceStatic,
		},
		Upstreams: config.UpstreamConfig{
			ChatBaseURL:     base + "/api/v1",
			ChatModel:       "openai/gpt-3.5-turbo",
			MetadataBaseURL: base + "/api",
			ImagesBaseURL:   base + "/api/images/badge",
			UserAgent:       "stream-relay/test",
		},
	}
}

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	registry, err := NewRegistry(testConfig(base))
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	client, err := NewClient(Options{
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Registry:   registry,
		UserAgent:  "stream-relay/test",
	})
	if err != nil {
		t.Fatalf("client error: %v", err)
	}
	return client
}
