package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reactorops/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, core.ErrEmptyCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrResourceNotFound), errors.Is(err, core.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrOutsideZones):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func monthFromPath(w http.ResponseWriter, r *http.Request) (core.Month, bool) {
	m, err := core.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return m, true
}
