package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stampchat/stampchat/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		AuthMode:           config.AuthModeDisabled,
		APIKeys:            map[string]struct{}{},
		CORSAllowedOrigins: map[string]struct{}{},

		MaxBodyBytes:    1 << 20,
		MaxMessageChars: 4000,

		OpenAIAPIKey: "sk-test",
		AssistantID:  "asst_test",

		PollInterval:   time.Second,
		MaxPolls:       12,
		KeepAliveEvery: 4,
		ActiveRunWait:  5 * time.Second,
		DeadlineBudget: 8 * time.Second,

		DedupWindow: time.Minute,
		ContextTTL:  10 * time.Minute,
		ContextCap:  5,
		ChunkWords:  5,

		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		HandlerTimeout:    time.Minute,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(testConfig(), logger)
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"code":"not_found"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_HealthRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%q", path, rr.Code, rr.Body.String())
		}
	}
}

func TestServer_MetricsRoute_Reachable(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestServer_StatusRoute_Reachable(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"sessions"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_ChatRoute_ValidatesBeforeUpstream(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"sessionId":"s1"}`))
	s.Handler().ServeHTTP(rr, req)

	// A missing message fails validation before any provider call.
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "validation_error") {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_UnsupportedAPIVersionRejected(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("X-StampChat-Version", "99")
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "unsupported_version") {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_RequiredAuthRejectsAnonymous(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"sk-client": {}}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := New(cfg, logger)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi","sessionId":"s1"}`))
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
