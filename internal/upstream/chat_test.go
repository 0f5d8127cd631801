package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stream-relay/stream-relay/internal/metrics"
)

type chatRecord struct {
	Path   string
	Auth   string
	Model  string
	Role   string
	Prompt string
}

func newChatServer(t *testing.T, status int, body string, record *chatRecord, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if record != nil {
			record.Path = r.URL.Path
			record.Auth = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			var payload struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.Unmarshal(raw, &payload); err == nil {
				record.Model = payload.Model
				if len(payload.Messages) == 1 {
					record.Role = payload.Messages[0].Role
					record.Prompt = payload.Messages[0].Content
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestChatClient(t *testing.T, base, apiKey string, collector *metrics.Collector) *ChatClient {
	t.Helper()
	registry, err := NewRegistry(testConfig(base))
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	route, _ := registry.Lookup(NameChat)
	client, err := NewChatClient(ChatOptions{
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Route:      route,
		APIKey:     apiKey,
		Model:      "openai/gpt-3.5-turbo",
		Metrics:    collector,
	})
	if err != nil {
		t.Fatalf("chat client error: %v", err)
	}
	return client
}

const chatReply = `{"id":"gen-1","object":"chat.completion","model":"openai/gpt-3.5-turbo",
"choices":[{"index":0,"message":{"role":"assistant","content":"4"},"finish_reason":"stop"}]}`

func TestChatAskRoundTrip(t *testing.T) {
	record := &chatRecord{}
	srv := newChatServer(t, http.StatusOK, chatReply, record, nil)
	defer srv.Close()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	client := newTestChatClient(t, srv.URL, "sk-test", collector)

	reply, err := client.Ask(context.Background(), "2+2?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "4" {
		t.Fatalf("expected reply 4, got %q", reply)
	}
	if record.Path != "/api/v1/chat/completions" {
		t.Fatalf("unexpected chat path: %s", record.Path)
	}
	if record.Auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", record.Auth)
	}
	if record.Model != "openai/gpt-3.5-turbo" || record.Role != "user" || record.Prompt != "2+2?" {
		t.Fatalf("unexpected chat payload: %+v", record)
	}
	count, err := testutil.GatherAndCount(collector.Registry(), "stream_relay_upstream_requests_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one upstream request series, got %d", count)
	}
}

func TestChatAskFallsBackWhenNoContent(t *testing.T) {
	bodies := map[string]string{
		"no choices":    `{"id":"gen-2","choices":[]}`,
		"empty content": `{"id":"gen-3","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newChatServer(t, http.StatusOK, body, nil, nil)
			defer srv.Close()

			reply, err := newTestChatClient(t, srv.URL, "sk-test", nil).Ask(context.Background(), "hello")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reply != FallbackReply {
				t.Fatalf("expected fallback reply, got %q", reply)
			}
		})
	}
}

func TestChatAskRejectsEmptyQuestionWithoutCallingUpstream(t *testing.T) {
	var calls int32
	srv := newChatServer(t, http.StatusOK, chatReply, nil, &calls)
	defer srv.Close()

	_, err := newTestChatClient(t, srv.URL, "sk-test", nil).Ask(context.Background(), "")
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("upstream should not be called for empty question")
	}
}

func TestChatAskClassifiesUpstreamStatus(t *testing.T) {
	srv := newChatServer(t, http.StatusBadGateway,
		`{"error":{"message":"provider unavailable","type":"server_error","code":502}}`, nil, nil)
	defer srv.Close()

	_, err := newTestChatClient(t, srv.URL, "sk-test", nil).Ask(context.Background(), "2+2?")
	upErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if upErr.Kind != KindUpstreamStatus || upErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected classification: %+v", upErr)
	}
	if upErr.Detail != "provider unavailable" {
		t.Fatalf("expected provider message as detail, got %q", upErr.Detail)
	}
}

func TestChatAskClassifiesNetworkFailure(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, chatReply, nil, nil)
	base := srv.URL
	srv.Close()

	_, err := newTestChatClient(t, base, "sk-test", nil).Ask(context.Background(), "2+2?")
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestNewChatClientRequiresRouteAndModel(t *testing.T) {
	if _, err := NewChatClient(ChatOptions{Model: "m"}); err == nil {
		t.Fatalf("expected error without route")
	}
	registry, _ := NewRegistry(testConfig("https://openrouter.example"))
	route, _ := registry.Lookup(NameChat)
	if _, err := NewChatClient(ChatOptions{Route: route, Model: "  "}); err == nil {
		t.Fatalf("expected error without model")
	}
}
