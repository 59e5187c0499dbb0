package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/ratelimit"
)

func TestRateLimit_Burst429IncludesRetryAfter(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{
		RPS:   1,
		Burst: 1,
	})

	h := RateLimit(config.Config{}, lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	{
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("first request status=%d body=%q", rr.Code, rr.Body.String())
		}
	}

	{
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status=%d body=%q", rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("Retry-After"); got == "" {
			t.Fatalf("expected Retry-After header")
		}
		if body := rr.Body.String(); !strings.Contains(body, `"type":"rate_limit_error"`) {
			t.Fatalf("unexpected body: %q", body)
		}
	}
}

func TestRateLimit_ConcurrentRequests429(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{MaxConcurrentRequests: 1})

	started := make(chan struct{})
	release := make(chan struct{})

	h := RateLimit(config.Config{}, lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("first request status=%d body=%q", rr.Code, rr.Body.String())
		}
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d body=%q", rr2.Code, rr2.Body.String())
	}

	close(release)
	wg.Wait()
}

func TestRateLimit_HealthEndpointsBypass(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{RPS: 1, Burst: 1})

	h := RateLimit(config.Config{}, lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("health request %d status=%d", i, rr.Code)
		}
	}
}
