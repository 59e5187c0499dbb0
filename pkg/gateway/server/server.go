// Package server assembles the gateway: provider clients, the run driver,
// session state, the HTTP routes and the middleware chain.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/dedup"
	"github.com/stampchat/stampchat/pkg/gateway/handlers"
	"github.com/stampchat/stampchat/pkg/gateway/lifecycle"
	"github.com/stampchat/stampchat/pkg/gateway/live"
	"github.com/stampchat/stampchat/pkg/gateway/metrics"
	"github.com/stampchat/stampchat/pkg/gateway/mw"
	"github.com/stampchat/stampchat/pkg/gateway/ratelimit"
	"github.com/stampchat/stampchat/pkg/gateway/runner"
	"github.com/stampchat/stampchat/pkg/gateway/session"
	"github.com/stampchat/stampchat/pkg/gateway/tools"
	"github.com/stampchat/stampchat/pkg/provider/assistants"
	"github.com/stampchat/stampchat/pkg/provider/responses"
	"github.com/stampchat/stampchat/pkg/voice/stt"
	"github.com/stampchat/stampchat/pkg/voice/tts"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	registry    *session.Registry
	dedup       *dedup.Deduplicator
	driver      *runner.Driver
	singleShot  core.ResponseProvider
	vision      core.VisionProvider
	transcriber core.Transcriber
	synthesizer core.Synthesizer
	metrics     *metrics.Metrics
	limiter     *ratelimit.Limiter
	lifecycle   *lifecycle.Lifecycle
	liveTracker *live.Tracker
	liveBridge  *live.Bridge
	httpClient  *http.Client
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	conversations := newConversationProvider(cfg, httpClient)
	singleShot := newResponseProvider(cfg)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),

		registry: session.NewRegistry(
			session.WithStampContext(cfg.ContextTTL, cfg.ContextCap),
		),
		dedup: dedup.New(dedup.WithWindow(cfg.DedupWindow)),
		driver: &runner.Driver{
			Provider: conversations,
			Resolver: &tools.Resolver{Provider: conversations, Logger: logger},
			Agent: core.AgentConfig{
				AgentID:      cfg.AssistantID,
				Instructions: cfg.Instructions,
			},
			Logger:         logger,
			PollInterval:   cfg.PollInterval,
			MaxPolls:       cfg.MaxPolls,
			KeepAliveEvery: cfg.KeepAliveEvery,
			ActiveRunWait:  cfg.ActiveRunWait,
		},
		singleShot:  singleShot,
		vision:      singleShot,
		transcriber: stt.NewWithClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient),
		synthesizer: tts.NewWithClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient),
		metrics:     metrics.New(cfg.MetricsNamespace),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MaxConcurrentRequests: cfg.LimitMaxConcurrentRequests,
		}),
		lifecycle:   lifecycle.New(),
		liveTracker: live.NewTracker(),
		liveBridge: &live.Bridge{
			APIKey:             cfg.OpenAIAPIKey,
			Logger:             logger,
			PingInterval:       cfg.LiveWSPingInterval,
			WriteTimeout:       cfg.LiveWSWriteTimeout,
			MaxSessionDuration: cfg.LiveMaxSessionDuration,
			MaxFrameBytes:      cfg.LiveMaxFrameBytes,
		},
		httpClient: httpClient,
	}

	s.driver.OnPoll = s.metrics.PollsTotal.Inc
	s.driver.Resolver.OnToolCall = s.metrics.RecordToolCall

	s.routes()
	return s
}

// newConversationProvider builds the assistants client, honoring a custom
// base URL for tests and proxies.
func newConversationProvider(cfg config.Config, httpClient *http.Client) core.ConversationProvider {
	if cfg.OpenAIBaseURL != "" {
		return assistants.NewWithClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient)
	}
	return assistants.New(cfg.OpenAIAPIKey)
}

func newResponseProvider(cfg config.Config) *responses.Client {
	if cfg.OpenAIBaseURL != "" {
		return responses.NewWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ResponseModel)
	}
	return responses.New(cfg.OpenAIAPIKey, cfg.ResponseModel)
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/v1/chat", handlers.ChatHandler{
		Config:     s.cfg,
		Driver:     s.driver,
		Registry:   s.registry,
		Dedup:      s.dedup,
		SingleShot: s.singleShot,
		Metrics:    s.metrics,
		Logger:     s.logger,
	})
	s.mux.Handle("/v1/stamps/identify", handlers.IdentifyHandler{
		Config:  s.cfg,
		Vision:  s.vision,
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	s.mux.Handle("/v1/voice/transcribe", handlers.TranscribeHandler{
		Config:      s.cfg,
		Transcriber: s.transcriber,
		Metrics:     s.metrics,
		Logger:      s.logger,
	})
	s.mux.Handle("/v1/voice/speech", handlers.SpeechHandler{
		Config:      s.cfg,
		Synthesizer: s.synthesizer,
		Metrics:     s.metrics,
		Logger:      s.logger,
	})
	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:    s.cfg,
		Bridge:    s.liveBridge,
		Tracker:   s.liveTracker,
		Lifecycle: s.lifecycle,
		Logger:    s.logger,
	})
	s.mux.Handle("/v1/status", handlers.StatusHandler{
		Registry:     s.registry,
		Dedup:        s.dedup,
		LiveSessions: s.liveTracker,
		Lifecycle:    s.lifecycle,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Handler returns the mux wrapped in the middleware chain, outermost first:
// request id, access log, panic recovery, CORS, auth, rate limiting,
// version negotiation.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.APIVersion(h)
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the drain flag: readiness starts failing and new live
// sessions are rejected while in-flight work finishes.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WaitLiveSessions blocks until every live session closes or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.liveTracker.Wait(ctx)
}

// CancelLiveSessions force-cancels the remaining live sessions.
func (s *Server) CancelLiveSessions() int {
	return s.liveTracker.CancelAll()
}
