package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	// Maximum user message length in characters, enforced after decode.
	MaxMessageChars int

	// Upstream provider credentials and agent identity.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AssistantID   string
	ResponseModel string
	Instructions  string

	// Run driver cadence.
	PollInterval   time.Duration
	MaxPolls       int
	KeepAliveEvery int
	ActiveRunWait  time.Duration

	// Turn deadline, kept below typical serverless host kill windows.
	DeadlineBudget time.Duration

	// Request deduplication.
	DedupWindow time.Duration

	// Session stamp-context memory.
	ContextTTL time.Duration
	ContextCap int

	// Cosmetic streaming of the final text.
	ChunkWords int
	ChunkDelay time.Duration

	// Voice pipeline.
	VoiceName string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/v1/live).
	LiveWSPingInterval     time.Duration
	LiveWSWriteTimeout     time.Duration
	LiveMaxSessionDuration time.Duration
	LiveMaxFrameBytes      int64

	// In-memory limits (per principal).
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration

	MetricsNamespace string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("STAMPCHAT_ADDR", ":8080"),
		AuthMode:                   AuthMode(envOr("STAMPCHAT_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:                    make(map[string]struct{}),
		TrustProxyHeaders:          envBoolOr("STAMPCHAT_TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:               envInt64Or("STAMPCHAT_MAX_BODY_BYTES", 1<<20), // 1 MiB
		MaxMessageChars:            envIntOr("STAMPCHAT_MAX_MESSAGE_CHARS", 4000),
		OpenAIAPIKey:               strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:              envOr("STAMPCHAT_OPENAI_BASE_URL", ""),
		AssistantID:                strings.TrimSpace(os.Getenv("STAMPCHAT_ASSISTANT_ID")),
		ResponseModel:              envOr("STAMPCHAT_RESPONSE_MODEL", "gpt-4o"),
		Instructions:               strings.TrimSpace(os.Getenv("STAMPCHAT_INSTRUCTIONS")),
		PollInterval:               envDurationOr("STAMPCHAT_POLL_INTERVAL", 750*time.Millisecond),
		MaxPolls:                   envIntOr("STAMPCHAT_MAX_POLLS", 12),
		KeepAliveEvery:             envIntOr("STAMPCHAT_KEEP_ALIVE_EVERY", 4),
		ActiveRunWait:              envDurationOr("STAMPCHAT_ACTIVE_RUN_WAIT", 5*time.Second),
		DeadlineBudget:             envDurationOr("STAMPCHAT_DEADLINE_BUDGET", 8*time.Second),
		DedupWindow:                envDurationOr("STAMPCHAT_DEDUP_WINDOW", 60*time.Second),
		ContextTTL:                 envDurationOr("STAMPCHAT_CONTEXT_TTL", 10*time.Minute),
		ContextCap:                 envIntOr("STAMPCHAT_CONTEXT_CAP", 5),
		ChunkWords:                 envIntOr("STAMPCHAT_CHUNK_WORDS", 5),
		ChunkDelay:                 envDurationOr("STAMPCHAT_CHUNK_DELAY", 30*time.Millisecond),
		VoiceName:                  envOr("STAMPCHAT_VOICE", "alloy"),
		CORSAllowedOrigins:         make(map[string]struct{}),
		LiveWSPingInterval:         envDurationOr("STAMPCHAT_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:         envDurationOr("STAMPCHAT_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveMaxSessionDuration:     envDurationOr("STAMPCHAT_LIVE_MAX_DURATION", 30*time.Minute),
		LiveMaxFrameBytes:          envInt64Or("STAMPCHAT_LIVE_MAX_FRAME_BYTES", 64*1024),
		LimitRPS:                   envFloat64Or("STAMPCHAT_RATE_LIMIT_RPS", 2.0),
		LimitBurst:                 envIntOr("STAMPCHAT_RATE_LIMIT_BURST", 4),
		LimitMaxConcurrentRequests: envIntOr("STAMPCHAT_MAX_CONCURRENT_REQUESTS", 20),
		ReadHeaderTimeout:          envDurationOr("STAMPCHAT_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                envDurationOr("STAMPCHAT_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:             envDurationOr("STAMPCHAT_TOTAL_REQUEST_TIMEOUT", time.Minute),
		ShutdownGracePeriod:        envDurationOr("STAMPCHAT_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		MetricsNamespace:           envOr("STAMPCHAT_METRICS_NAMESPACE", "stampchat"),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("STAMPCHAT_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("STAMPCHAT_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("STAMPCHAT_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if cfg.AssistantID == "" {
		return Config{}, fmt.Errorf("STAMPCHAT_ASSISTANT_ID must be set")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxMessageChars <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_MAX_MESSAGE_CHARS must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_POLL_INTERVAL must be > 0")
	}
	if cfg.MaxPolls <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_MAX_POLLS must be > 0")
	}
	if cfg.KeepAliveEvery <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_KEEP_ALIVE_EVERY must be > 0")
	}
	if cfg.ActiveRunWait <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_ACTIVE_RUN_WAIT must be > 0")
	}
	if cfg.DeadlineBudget <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_DEADLINE_BUDGET must be > 0")
	}
	if cfg.DedupWindow <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_DEDUP_WINDOW must be > 0")
	}
	if cfg.ContextTTL <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_CONTEXT_TTL must be > 0")
	}
	if cfg.ContextCap <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_CONTEXT_CAP must be > 0")
	}
	if cfg.ChunkWords <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_CHUNK_WORDS must be > 0")
	}
	if cfg.ChunkDelay < 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_CHUNK_DELAY must be >= 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.LiveMaxFrameBytes <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_LIVE_MAX_FRAME_BYTES must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentRequests < 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_MAX_CONCURRENT_REQUESTS must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.DeadlineBudget >= cfg.HandlerTimeout {
		return Config{}, fmt.Errorf("STAMPCHAT_DEADLINE_BUDGET must be < STAMPCHAT_TOTAL_REQUEST_TIMEOUT")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("STAMPCHAT_API_KEYS must be set when STAMPCHAT_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
