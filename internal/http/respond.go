package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"casal/internal/auth"
	"casal/internal/core"
	"casal/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondDomainError maps known domain errors onto HTTP statuses; anything
// unrecognized is a 500 with a generic body, details go to the log only.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrEmailExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrMissingCouple):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrZeroDate):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into v, rejecting unknown garbage early.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
