package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raspisms/golang_services/internal/core_domain"
	inboundapp "github.com/raspisms/golang_services/internal/inbound_processor_service/app"
	"github.com/raspisms/golang_services/internal/platform/session"
)

// Inbox lists and acknowledges received messages.
type Inbox interface {
	ListReceived(ctx context.Context, userID string, page int) ([]*core_domain.Received, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// MessageHandler serves the received messages of the authenticated user.
type MessageHandler struct {
	inbox  Inbox
	logger *slog.Logger
}

func NewMessageHandler(inbox Inbox, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{inbox: inbox, logger: logger.With("handler", "messages")}
}

func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/received", h.handleListReceived)
	r.Post("/received/{id}/read", h.handleMarkRead)
}

func (h *MessageHandler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	page := pageParam(r)
	received, err := h.inbox.ListReceived(r.Context(), s.UserID, page)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PageResponse{Items: nonNil(received), Page: page, PerPage: inboundapp.PerPage})
}

func (h *MessageHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := h.inbox.MarkRead(r.Context(), s.UserID, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
