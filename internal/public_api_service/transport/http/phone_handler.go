package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	"github.com/raspisms/golang_services/internal/sms_sending_service/app"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

// Messaging is the phone and outbound SMS surface.
type Messaging interface {
	Adapters() []smsprovider.Meta
	CreatePhone(ctx context.Context, userID, name, adapterID string, data json.RawMessage) (*domain.Phone, error)
	ListPhones(ctx context.Context, userID string) ([]*domain.Phone, error)
	DeletePhone(ctx context.Context, userID, phoneID string) error
	TestPhone(ctx context.Context, userID, phoneID string) (bool, error)
	Send(ctx context.Context, userID, phoneID, destination, text string, flash bool) (*core_domain.Sended, error)
	ListSended(ctx context.Context, userID string, page int) ([]*core_domain.Sended, error)
}

// PhoneHandler manages phones and sends messages through them.
type PhoneHandler struct {
	messaging Messaging
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewPhoneHandler(messaging Messaging, logger *slog.Logger) *PhoneHandler {
	return &PhoneHandler{
		messaging: messaging,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("handler", "phones"),
	}
}

func (h *PhoneHandler) RegisterRoutes(r chi.Router) {
	r.Get("/adapters", h.handleAdapters)
	r.Route("/phones", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/test", h.handleTest)
		r.Post("/{id}/send", h.handleSend)
	})
	r.Get("/sended", h.handleListSended)
}

func (h *PhoneHandler) handleAdapters(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.messaging.Adapters())
}

func (h *PhoneHandler) handleList(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	phones, err := h.messaging.ListPhones(r.Context(), s.UserID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]PhoneResponse, 0, len(phones))
	for _, p := range phones {
		resp = append(resp, toPhoneResponse(p))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *PhoneHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	var req CreatePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}

	phone, err := h.messaging.CreatePhone(r.Context(), s.UserID, req.Name, req.Adapter, req.AdapterData)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Phone created", "phoneID", phone.ID, "adapter", phone.Adapter, "userID", s.UserID)
	respondWithJSON(w, http.StatusCreated, toPhoneResponse(phone))
}

func (h *PhoneHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := h.messaging.DeletePhone(r.Context(), s.UserID, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PhoneHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	phoneID := chi.URLParam(r, "id")
	ok, err := h.messaging.TestPhone(r.Context(), s.UserID, phoneID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PhoneTestResponse{PhoneID: phoneID, OK: ok})
}

func (h *PhoneHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	req, err := decodeSendRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}

	sended, err := h.messaging.Send(r.Context(), s.UserID, chi.URLParam(r, "id"), req.Destination, req.Text, req.Flash)
	if err != nil {
		if sended != nil {
			respondWithJSON(w, mapErrorToHTTPStatus(err), SendFailureResponse{Error: err.Error(), Sended: sended})
			return
		}
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sended)
}

func (h *PhoneHandler) handleListSended(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	page := pageParam(r)
	sended, err := h.messaging.ListSended(r.Context(), s.UserID, page)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PageResponse{Items: nonNil(sended), Page: page, PerPage: app.PerPage})
}

// decodeSendRequest reads a JSON body or, for any other content type, the form values.
func decodeSendRequest(r *http.Request) (SendRequest, error) {
	var req SendRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			return req, errors.New("empty body")
		}
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Destination = strings.TrimSpace(r.PostForm.Get("destination"))
	req.Text = r.PostForm.Get("text")
	req.Flash = formBool(r.PostForm.Get("flash"))
	return req, nil
}

func toPhoneResponse(p *domain.Phone) PhoneResponse {
	return PhoneResponse{ID: p.ID, Name: p.Name, Adapter: p.Adapter, CreatedAt: p.CreatedAt}
}
