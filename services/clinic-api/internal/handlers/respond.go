package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clinicbook/clinicbook/libs/httpx"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps engine errors onto the HTTP error taxonomy: invalid
// input is 400, missing resources 404, slot conflicts 409, anything
// else a logged 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *booking.ValidationError
	var nfErr *booking.NotFoundError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Msg, Field: vErr.Field})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: nfErr.Error()})
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "slot is no longer available"})
	default:
		a.logger.Error("request failed",
			slog.String("request_id", httpx.RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return booking.Invalid("body", "invalid JSON payload")
	}
	return nil
}
