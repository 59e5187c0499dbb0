package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stampchat/stampchat/pkg/gateway/config"
	gatewayserver "github.com/stampchat/stampchat/pkg/gateway/server"
)

func testGatewayConfig() config.Config {
	return config.Config{
		Addr:     "127.0.0.1:0",
		AuthMode: config.AuthModeDisabled,
		APIKeys:  map[string]struct{}{},

		MaxBodyBytes:    1 << 20,
		MaxMessageChars: 4000,

		OpenAIAPIKey:  "sk-test",
		AssistantID:   "asst_test",
		ResponseModel: "gpt-4o",

		PollInterval:   200 * time.Millisecond,
		MaxPolls:       10,
		KeepAliveEvery: 5,
		ActiveRunWait:  time.Second,
		DeadlineBudget: 10 * time.Second,
		DedupWindow:    30 * time.Second,
		ContextTTL:     time.Hour,
		ContextCap:     5,
		ChunkWords:     5,

		VoiceName: "alloy",

		CORSAllowedOrigins: map[string]struct{}{},

		LiveWSPingInterval:     20 * time.Second,
		LiveWSWriteTimeout:     5 * time.Second,
		LiveMaxSessionDuration: 30 * time.Minute,
		LiveMaxFrameBytes:      1 << 20,

		ReadHeaderTimeout:   2 * time.Second,
		ReadTimeout:         30 * time.Second,
		HandlerTimeout:      60 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
	}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newGateway: func(cfg config.Config, logger *slog.Logger) *gatewayserver.Server {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunGateway_MissingDependencies(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runGateway(context.Background(), logger, gatewayDeps{})
	if err == nil {
		t.Fatalf("expected error for empty dependencies")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestRunGateway_SignalTriggersCleanShutdown(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var sigCh chan<- os.Signal
	notified := make(chan struct{})
	deps := gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return testGatewayConfig(), nil
		},
		newGateway: gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			sigCh = c
			close(notified)
		},
		signalStop: func(c chan<- os.Signal) {},
	}

	done := make(chan error, 1)
	go func() {
		done <- runGateway(context.Background(), logger, deps)
	}()

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatalf("signalNotify was never called")
	}
	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runGateway error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("runGateway did not shut down after signal")
	}
}

func TestGatewayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gatewayserver.New(testGatewayConfig(), logger)

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want %d", resp.StatusCode, http.StatusOK)
	}
}
