package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"STAMPCHAT_ADDR",
	"STAMPCHAT_AUTH_MODE",
	"STAMPCHAT_API_KEYS",
	"STAMPCHAT_TRUST_PROXY_HEADERS",
	"STAMPCHAT_CORS_ORIGINS",
	"STAMPCHAT_MAX_BODY_BYTES",
	"STAMPCHAT_MAX_MESSAGE_CHARS",
	"STAMPCHAT_OPENAI_BASE_URL",
	"STAMPCHAT_ASSISTANT_ID",
	"STAMPCHAT_RESPONSE_MODEL",
	"STAMPCHAT_INSTRUCTIONS",
	"STAMPCHAT_POLL_INTERVAL",
	"STAMPCHAT_MAX_POLLS",
	"STAMPCHAT_KEEP_ALIVE_EVERY",
	"STAMPCHAT_ACTIVE_RUN_WAIT",
	"STAMPCHAT_DEADLINE_BUDGET",
	"STAMPCHAT_DEDUP_WINDOW",
	"STAMPCHAT_CONTEXT_TTL",
	"STAMPCHAT_CONTEXT_CAP",
	"STAMPCHAT_CHUNK_WORDS",
	"STAMPCHAT_CHUNK_DELAY",
	"STAMPCHAT_VOICE",
	"STAMPCHAT_LIVE_WS_PING_INTERVAL",
	"STAMPCHAT_LIVE_WS_WRITE_TIMEOUT",
	"STAMPCHAT_LIVE_MAX_DURATION",
	"STAMPCHAT_LIVE_MAX_FRAME_BYTES",
	"STAMPCHAT_RATE_LIMIT_RPS",
	"STAMPCHAT_RATE_LIMIT_BURST",
	"STAMPCHAT_MAX_CONCURRENT_REQUESTS",
	"STAMPCHAT_READ_HEADER_TIMEOUT",
	"STAMPCHAT_READ_TIMEOUT",
	"STAMPCHAT_TOTAL_REQUEST_TIMEOUT",
	"STAMPCHAT_SHUTDOWN_GRACE_PERIOD",
	"STAMPCHAT_METRICS_NAMESPACE",
	"OPENAI_API_KEY",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STAMPCHAT_ASSISTANT_ID", "asst_test")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeDisabled {
		t.Fatalf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeDisabled)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, int64(1<<20))
	}
	if cfg.MaxMessageChars != 4000 {
		t.Fatalf("MaxMessageChars = %d, want 4000", cfg.MaxMessageChars)
	}
	if cfg.PollInterval != 750*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 750ms", cfg.PollInterval)
	}
	if cfg.MaxPolls != 12 {
		t.Fatalf("MaxPolls = %d, want 12", cfg.MaxPolls)
	}
	if cfg.KeepAliveEvery != 4 {
		t.Fatalf("KeepAliveEvery = %d, want 4", cfg.KeepAliveEvery)
	}
	if cfg.ActiveRunWait != 5*time.Second {
		t.Fatalf("ActiveRunWait = %v, want 5s", cfg.ActiveRunWait)
	}
	if cfg.DeadlineBudget != 8*time.Second {
		t.Fatalf("DeadlineBudget = %v, want 8s", cfg.DeadlineBudget)
	}
	if cfg.DedupWindow != 60*time.Second {
		t.Fatalf("DedupWindow = %v, want 60s", cfg.DedupWindow)
	}
	if cfg.ContextTTL != 10*time.Minute {
		t.Fatalf("ContextTTL = %v, want 10m", cfg.ContextTTL)
	}
	if cfg.ContextCap != 5 {
		t.Fatalf("ContextCap = %d, want 5", cfg.ContextCap)
	}
	if cfg.ChunkWords != 5 {
		t.Fatalf("ChunkWords = %d, want 5", cfg.ChunkWords)
	}
	if cfg.VoiceName != "alloy" {
		t.Fatalf("VoiceName = %q, want alloy", cfg.VoiceName)
	}
	if cfg.ResponseModel != "gpt-4o" {
		t.Fatalf("ResponseModel = %q, want gpt-4o", cfg.ResponseModel)
	}
	if cfg.LiveWSPingInterval != 20*time.Second {
		t.Fatalf("LiveWSPingInterval = %v, want 20s", cfg.LiveWSPingInterval)
	}
	if cfg.HandlerTimeout != time.Minute {
		t.Fatalf("HandlerTimeout = %v, want 1m", cfg.HandlerTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
	if cfg.MetricsNamespace != "stampchat" {
		t.Fatalf("MetricsNamespace = %q, want stampchat", cfg.MetricsNamespace)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("STAMPCHAT_ADDR", ":9090")
	t.Setenv("STAMPCHAT_AUTH_MODE", "required")
	t.Setenv("STAMPCHAT_API_KEYS", "k1, k2")
	t.Setenv("STAMPCHAT_POLL_INTERVAL", "500ms")
	t.Setenv("STAMPCHAT_MAX_POLLS", "20")
	t.Setenv("STAMPCHAT_DEADLINE_BUDGET", "6s")
	t.Setenv("STAMPCHAT_CORS_ORIGINS", "https://stamps.example, https://dev.example")
	t.Setenv("STAMPCHAT_VOICE", "nova")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeRequired {
		t.Fatalf("AuthMode = %q", cfg.AuthMode)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("APIKeys = %v", cfg.APIKeys)
	}
	if _, ok := cfg.APIKeys["k2"]; !ok {
		t.Fatal("APIKeys missing trimmed k2")
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxPolls != 20 {
		t.Fatalf("MaxPolls = %d", cfg.MaxPolls)
	}
	if cfg.DeadlineBudget != 6*time.Second {
		t.Fatalf("DeadlineBudget = %v", cfg.DeadlineBudget)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.VoiceName != "nova" {
		t.Fatalf("VoiceName = %q", cfg.VoiceName)
	}
}

func TestLoadFromEnv_RequiredFields(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("STAMPCHAT_ASSISTANT_ID", "asst_test")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("err = %v, want missing OPENAI_API_KEY", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STAMPCHAT_ASSISTANT_ID", "")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "STAMPCHAT_ASSISTANT_ID") {
		t.Fatalf("err = %v, want missing STAMPCHAT_ASSISTANT_ID", err)
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad auth mode", "STAMPCHAT_AUTH_MODE", "sometimes", "STAMPCHAT_AUTH_MODE"},
		{"zero polls", "STAMPCHAT_MAX_POLLS", "0", "STAMPCHAT_MAX_POLLS"},
		{"negative polls", "STAMPCHAT_MAX_POLLS", "-3", "STAMPCHAT_MAX_POLLS"},
		{"zero context cap", "STAMPCHAT_CONTEXT_CAP", "0", "STAMPCHAT_CONTEXT_CAP"},
		{"zero chunk words", "STAMPCHAT_CHUNK_WORDS", "0", "STAMPCHAT_CHUNK_WORDS"},
		{"budget over handler timeout", "STAMPCHAT_DEADLINE_BUDGET", "5m", "STAMPCHAT_DEADLINE_BUDGET"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.val)

			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadFromEnv_RequiredAuthNeedsKeys(t *testing.T) {
	clearGatewayEnv(t)
	setRequiredEnv(t)
	t.Setenv("STAMPCHAT_AUTH_MODE", "required")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "STAMPCHAT_API_KEYS") {
		t.Fatalf("err = %v, want missing STAMPCHAT_API_KEYS", err)
	}
}
