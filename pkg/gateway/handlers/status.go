package handlers

import (
	"net/http"

	"github.com/stampchat/stampchat/pkg/gateway/lifecycle"
	"github.com/stampchat/stampchat/pkg/gateway/live"
)

// StatusHandler serves GET /v1/status with in-process counters.
type StatusHandler struct {
	Registry     SessionStore
	Dedup        Deduper
	LiveSessions *live.Tracker
	Lifecycle    *lifecycle.Lifecycle
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	type statusResp struct {
		Sessions      int   `json:"sessions"`
		InFlight      int   `json:"inFlight"`
		LiveSessions  int   `json:"liveSessions"`
		UptimeSeconds int64 `json:"uptimeSeconds"`
	}

	writeJSON(w, http.StatusOK, statusResp{
		Sessions:      h.Registry.Count(),
		InFlight:      h.Dedup.Count(),
		LiveSessions:  h.LiveSessions.Count(),
		UptimeSeconds: int64(h.Lifecycle.Uptime().Seconds()),
	})
}
