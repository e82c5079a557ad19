package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/scheduler_service/app"
)

// Scheduler stores messages planned for later.
type Scheduler interface {
	Create(ctx context.Context, userID string, req app.CreateScheduledRequest) (*core_domain.Scheduled, error)
	Get(ctx context.Context, userID, id string) (*core_domain.Scheduled, error)
	List(ctx context.Context, userID string, page int) ([]*core_domain.Scheduled, int, error)
	Delete(ctx context.Context, userID, id string) error
}

// ScheduledHandler handles HTTP requests for scheduled messages.
type ScheduledHandler struct {
	scheduler Scheduler
	logger    *slog.Logger
}

func NewScheduledHandler(scheduler Scheduler, logger *slog.Logger) *ScheduledHandler {
	return &ScheduledHandler{scheduler: scheduler, logger: logger.With("handler", "scheduled")}
}

func (h *ScheduledHandler) RegisterRoutes(r chi.Router) {
	r.Route("/scheduled", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *ScheduledHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	var req app.CreateScheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	scheduled, err := h.scheduler.Create(r.Context(), s.UserID, req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, scheduled)
}

func (h *ScheduledHandler) handleList(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	page := pageParam(r)
	list, total, err := h.scheduler.List(r.Context(), s.UserID, page)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PageResponse{Items: nonNil(list), Page: page, PerPage: app.PerPage, Total: total})
}

func (h *ScheduledHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	scheduled, err := h.scheduler.Get(r.Context(), s.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scheduled)
}

func (h *ScheduledHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := h.scheduler.Delete(r.Context(), s.UserID, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
