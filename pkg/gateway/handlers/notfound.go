package handlers

import (
	"net/http"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/gateway/apierror"
	"github.com/stampchat/stampchat/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeJSON(w, http.StatusNotFound, apierror.Envelope{Error: &core.Error{
		Type:      core.ErrValidation,
		Message:   "not found",
		Code:      "not_found",
		RequestID: reqID,
	}})
}
