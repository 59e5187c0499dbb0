package handlers

import (
	"net/http"

	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports config sanity and drain state. A draining gateway is
// not ready so the load balancer stops routing new work to it.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "openai api key is not configured")
	}
	if h.Config.AssistantID == "" {
		issues = append(issues, "assistant id is not configured")
	}
	if h.Config.MaxBodyBytes <= 0 {
		issues = append(issues, "max_body_bytes must be > 0")
	}
	if h.Config.PollInterval <= 0 || h.Config.MaxPolls <= 0 {
		issues = append(issues, "run poll cadence must be > 0")
	}
	if h.Config.DeadlineBudget <= 0 {
		issues = append(issues, "deadline budget must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	draining := h.Lifecycle != nil && h.Lifecycle.IsDraining()

	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Draining: draining,
		Issues:   issues,
	})
}
