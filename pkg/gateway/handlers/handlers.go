// Package handlers wires the HTTP surface to the conversation core: chat
// turns, voice I/O, image lookup, the live audio bridge, and operational
// endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/gateway/apierror"
	"github.com/stampchat/stampchat/pkg/gateway/mw"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.WriteJSON(w, err, reqID)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	w.Header().Set("Allow", allowed)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: &core.Error{
		Type:      core.ErrValidation,
		Message:   "method not allowed",
		Code:      "method_not_allowed",
		RequestID: reqID,
	}})
}

// decodeBody reads a length-capped JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.NewValidationError("invalid JSON body")
	}
	return nil
}
