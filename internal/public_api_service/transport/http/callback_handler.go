package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raspisms/golang_services/internal/core_domain"
)

// maxCallbackBytes bounds carrier pushes, which are unauthenticated.
const maxCallbackBytes = 64 << 10

// StatusCallbackProcessor applies carrier delivery reports.
type StatusCallbackProcessor interface {
	ProcessStatusCallback(ctx context.Context, phoneID string, r *http.Request) (*core_domain.Sended, error)
}

// ReceptionCallbackProcessor stores messages pushed by a carrier.
type ReceptionCallbackProcessor interface {
	ProcessReceptionCallback(ctx context.Context, phoneID string, r *http.Request) ([]*core_domain.Received, error)
}

// CallbackHandler receives unauthenticated carrier pushes. The phone id in the URL
// selects the adapter that parses the request.
type CallbackHandler struct {
	status    StatusCallbackProcessor
	reception ReceptionCallbackProcessor
	logger    *slog.Logger
}

func NewCallbackHandler(status StatusCallbackProcessor, reception ReceptionCallbackProcessor, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{status: status, reception: reception, logger: logger.With("handler", "callback")}
}

func (h *CallbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/callback/status/{phone_id}", h.handleStatus)
	r.Post("/callback/reception/{phone_id}", h.handleReception)
}

func (h *CallbackHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	phoneID := chi.URLParam(r, "phone_id")
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBytes)
	sended, err := h.status.ProcessStatusCallback(r.Context(), phoneID, r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Status callback rejected", "phoneID", phoneID, "error", err)
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"sended_id": sended.ID, "status": string(sended.Status)})
}

func (h *CallbackHandler) handleReception(w http.ResponseWriter, r *http.Request) {
	phoneID := chi.URLParam(r, "phone_id")
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBytes)
	received, err := h.reception.ProcessReceptionCallback(r.Context(), phoneID, r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Reception callback rejected", "phoneID", phoneID, "stored", len(received), "error", err)
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"received": len(received)})
}
