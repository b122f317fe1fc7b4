package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteJSON(w, http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(w http.ResponseWriter, err error) {
	slog.Warn("conflict", "error", err)
	WriteJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
}

func Locked(w http.ResponseWriter, err error) {
	slog.Warn("locked", "error", err)
	WriteJSON(w, http.StatusLocked, errorResponse{Error: err.Error()})
}

// Unavailable asks the client to retry a write that lost a race for the championship.
func Unavailable(w http.ResponseWriter, err error) {
	slog.Warn("retryable failure", "error", err)
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Busy, retry the request"})
}

// Error picks the status code for an engine error.
func Error(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, championship.ErrNotFound):
		NotFound(w, err.Error(), err)
	case errors.Is(err, championship.ErrInvalidConfig),
		errors.Is(err, championship.ErrInvalidResult),
		errors.Is(err, championship.ErrInvalidSeedCount),
		errors.Is(err, championship.ErrInsufficientParticipants),
		errors.Is(err, championship.ErrNotPlaceholder):
		BadRequest(w, err.Error(), err)
	case errors.Is(err, championship.ErrRoundLocked),
		errors.Is(err, championship.ErrMatchNotReady):
		Locked(w, err)
	case errors.Is(err, championship.ErrInvalidRoundOrder),
		errors.Is(err, championship.ErrDuplicateRoundGeneration),
		errors.Is(err, championship.ErrMatchAlreadyCompleted),
		errors.Is(err, championship.ErrWithdrawalClosed):
		Conflict(w, err)
	case service.IsRetryable(err):
		Unavailable(w, err)
	default:
		InternalServerError(w, msg, err)
	}
}
