package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrUnknownDataset), errors.Is(err, prefs.ErrUnknownLayer):
		return http.StatusNotFound
	case errors.Is(err, prefs.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotLoaded), errors.Is(err, prefs.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
