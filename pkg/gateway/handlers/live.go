package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/lifecycle"
	"github.com/stampchat/stampchat/pkg/gateway/live"
	"github.com/stampchat/stampchat/pkg/gateway/mw"
)

// LiveHandler serves GET /v1/live: upgrades the connection and hands it to
// the realtime bridge. Sessions are tracked so drain can cancel them.
type LiveHandler struct {
	Config    config.Config
	Bridge    *live.Bridge
	Tracker   *live.Tracker
	Lifecycle *lifecycle.Lifecycle
	Logger    *slog.Logger
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": &core.Error{Type: core.ErrAPI, Message: "gateway is draining", Code: "draining", RequestID: reqID},
		})
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, core.NewValidationErrorWithParam("origin is not allowed", "Origin"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		sessionID = "live_" + uuid.NewString()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := h.Tracker.Register(sessionID, live.Handle{Cancel: cancel})
	defer unregister()

	if err := h.Bridge.Run(ctx, conn, sessionID); err != nil {
		h.logger().Warn("live session ended with error", "session_id", sessionID, "error", err)
	}
}

// originAllowed mirrors the CORS middleware for the websocket handshake,
// which browsers do not subject to CORS preflight.
func (h LiveHandler) originAllowed(r *http.Request) bool {
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := h.Config.CORSAllowedOrigins[origin]; ok {
		return true
	}
	// Allow same-host connections regardless of scheme.
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return false
}

func (h LiveHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
