package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/drivecast/internal/drive"
	"github.com/tonimelisma/drivecast/internal/session"
	"github.com/tonimelisma/drivecast/internal/stream"
)

// Client-facing messages. Error details stay in the logs.
const (
	msgAuthRequired = "Authentication required"
	msgNotFound     = "Video not found"
	msgBadRange     = "Requested range not satisfiable"
	msgInternal     = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

type authRequiredBody struct {
	Error    string `json:"error"`
	NeedAuth bool   `json:"needAuth"`
	AuthURL  string `json:"authUrl"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err onto the HTTP error contract: auth errors are 401
// with a fresh consent URL, missing videos 404, bad ranges 416, and anything
// else a generic 500.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := loggerFrom(r.Context(), h.logger)

	var rerr *stream.RangeError

	switch {
	case session.IsAuthError(err):
		logger.Info(op+": authentication required", slog.String("error", err.Error()))
		respondJSON(w, http.StatusUnauthorized, authRequiredBody{
			Error:    msgAuthRequired,
			NeedAuth: true,
			AuthURL:  h.deps.Session.ConsentURL(),
		})

	case errors.As(err, &rerr):
		logger.Info(op+": bad range", slog.String("error", err.Error()))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", rerr.Size))
		respondJSON(w, http.StatusRequestedRangeNotSatisfiable, errorBody{Error: msgBadRange})

	case errors.Is(err, stream.ErrInvalidRange), errors.Is(err, stream.ErrUnsatisfiableRange):
		logger.Info(op+": bad range", slog.String("error", err.Error()))
		respondJSON(w, http.StatusRequestedRangeNotSatisfiable, errorBody{Error: msgBadRange})

	case errors.Is(err, drive.ErrNotFound):
		logger.Info(op+": not found", slog.String("error", err.Error()))
		respondJSON(w, http.StatusNotFound, errorBody{Error: msgNotFound})

	default:
		logger.Error(op+" failed", slog.String("error", err.Error()))
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
	}
}
