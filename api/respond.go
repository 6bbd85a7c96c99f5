package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/preptrack/internal/catalog"
	"github.com/garnizeh/preptrack/internal/progress"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError maps service errors onto status codes. Storage details stay in the logs.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, progress.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrUnknownProject):
		http.Error(w, "unknown project", http.StatusNotFound)
	case errors.Is(err, progress.ErrStorage):
		logger.Warn("storage unavailable", slog.String("path", r.URL.Path), slog.Any("err", err))
		http.Error(w, "storage unavailable, retry later", http.StatusServiceUnavailable)
	default:
		logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
