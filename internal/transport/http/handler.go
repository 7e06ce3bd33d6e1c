package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kittrack/internal/kit/models"
	"kittrack/internal/results"
)

// Handler serves the webhook intake for deployments that push lab results
// over HTTP instead of the message feed. Both paths converge on the same
// reconciler, so delivery guarantees are identical.
type Handler struct {
	results *results.Service
	logger  *slog.Logger
}

func NewHandler(resultSvc *results.Service, logger *slog.Logger) *Handler {
	return &Handler{results: resultSvc, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) PostResult(w http.ResponseWriter, r *http.Request) {
	var incoming models.LabResult
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "undecodable payload")
		return
	}

	accepted, err := h.results.Reconcile(r.Context(), incoming)
	switch {
	case errors.Is(err, results.ErrIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		var conflict *results.ConflictError
		if errors.As(err, &conflict) {
			writeError(w, http.StatusConflict, conflict.Error())
			return
		}
		h.logger.Error("result intake failed", "sample", incoming.SampleID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not process result")
	case accepted:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
