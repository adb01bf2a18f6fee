// Package http exposes the operator API: recording lookup, queue listing
// and the manual requeue override.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

const defaultListLimit = 50

// Handler serves the operator API over the queue manager.
type Handler struct {
	queue  *queue.Manager
	logger zerolog.Logger
}

// NewRouter constructs the operator API router.
func NewRouter(qm *queue.Manager, logger zerolog.Logger) http.Handler {
	h := &Handler{
		queue:  qm,
		logger: logger.With().Str("component", "operator-api").Logger(),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1/recordings", func(r chi.Router) {
		r.Get("/", h.listRecordings)
		r.Get("/{id}", h.getRecording)
		r.Post("/{id}/requeue", h.requeueRecording)
	})

	return r
}

func (h *Handler) getRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		h.logger.Error().Err(err).Str("recordingId", id).Msg("get recording failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) listRecordings(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.queue.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("status", status.String()).Msg("list recordings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"items":  items,
	})
}

func (h *Handler) requeueRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	operator := r.Header.Get("X-Operator")
	if operator == "" {
		writeError(w, http.StatusBadRequest, "X-Operator header is required for a manual requeue")
		return
	}

	rec, err := h.queue.Requeue(r.Context(), id, operator)
	if err != nil {
		var ite *models.InvalidTransitionError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "recording not found")
		case errors.As(err, &ite):
			writeError(w, http.StatusConflict, "only FAILED recordings can be requeued, current status "+ite.From.String())
		default:
			h.logger.Error().Err(err).Str("recordingId", id).Msg("requeue failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
