package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterServesRegisteredRoutes(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://relay.local/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if app.recorder.requestID == "" {
		t.Fatalf("handler should observe the request id")
	}
}

func TestRouterReturnsJSON404ForUnknownPath(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://relay.local/nowhere", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"error"`)) {
		t.Fatalf("expected JSON error body, got %s", string(body))
	}
}

func TestRouterAllowsAnyOriginByDefault(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://relay.local/ping", nil)
	req.Header.Set("Origin", "https://frontend.example")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", got)
	}
}

func TestRouterRecoversFromPanics(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://relay.local/panic", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := NewApp(AppOptions{Routes: &routeRecorder{}, ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without routes")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Routes: &routeRecorder{}}); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

type testApp struct {
	*fiber.App
	recorder *routeRecorder
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &routeRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Routes:     recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, recorder: recorder}
}

type routeRecorder struct {
	requestID string
}

func (r *routeRecorder) Register(app *fiber.App) {
	app.Get("/ping", func(c fiber.Ctx) error {
		r.requestID = RequestID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("boom")
	})
}
