// Package apierror maps internal errors onto the wire error envelope and
// an HTTP status.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stampchat/stampchat/pkg/core"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError converts any error into the canonical envelope body plus the
// HTTP status to serve it with. Unknown errors are reported as opaque
// internal failures so upstream details never leak to clients.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrUpstreamTimeout,
			Message:   "request timeout",
			Code:      "deadline",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrTransportClosed,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, StatusFromType(coreErr.Type)
	}

	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// StatusFromType maps the error taxonomy to HTTP statuses.
func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrUpstreamTimeout:
		return http.StatusRequestTimeout
	case core.ErrUpstreamFailure, core.ErrProtocol:
		return http.StatusBadGateway
	case core.ErrTransportClosed:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON serves the envelope for err on w. It must not be used after
// streaming has begun; stream handlers send an error frame instead.
func WriteJSON(w http.ResponseWriter, err error, requestID string) {
	coreErr, status := FromError(err, requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Error: coreErr})
}
