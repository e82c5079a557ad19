package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	inbounddomain "github.com/raspisms/golang_services/internal/inbound_processor_service/domain"
	mediaapp "github.com/raspisms/golang_services/internal/media_service/app"
	mediadomain "github.com/raspisms/golang_services/internal/media_service/domain"
	"github.com/raspisms/golang_services/internal/platform/session"
	scheddomain "github.com/raspisms/golang_services/internal/scheduler_service/domain"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	smsapp "github.com/raspisms/golang_services/internal/sms_sending_service/app"
	smsdomain "github.com/raspisms/golang_services/internal/sms_sending_service/domain"
	userapp "github.com/raspisms/golang_services/internal/user_service/app"
)

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, GenericErrorResponse{Error: message})
}

// mapErrorToHTTPStatus converts service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var verrs validator.ValidationErrors
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, smsdomain.ErrPhoneNotFound),
		errors.Is(err, smsdomain.ErrSendedNotFound),
		errors.Is(err, inbounddomain.ErrReceivedNotFound),
		errors.Is(err, scheddomain.ErrNotFound),
		errors.Is(err, mediadomain.ErrMediaNotFound),
		errors.Is(err, mediadomain.ErrResourceNotFound),
		errors.Is(err, mediadomain.ErrLinkNotFound),
		errors.Is(err, userapp.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, smsdomain.ErrDuplicatePhone),
		errors.Is(err, userapp.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, smsapp.ErrInvalidPhone),
		errors.Is(err, smsapp.ErrInvalidDestination),
		errors.Is(err, scheddomain.ErrInvalidScheduled),
		errors.Is(err, mediaapp.ErrInvalidMedia),
		errors.Is(err, mediadomain.ErrUnknownResourceKind),
		errors.Is(err, smsprovider.ErrUnknownAdapter),
		errors.Is(err, smsprovider.ErrCapabilityUnsupported),
		smsprovider.IsKind(err, smsprovider.KindValidation),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case smsprovider.IsKind(err, smsprovider.KindTransport),
		smsprovider.IsKind(err, smsprovider.KindApplication):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes err with its mapped status. Internal errors are logged, not echoed.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

// redirectWithFlash queues a flash message and redirects to target with 303 See Other.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, sessions *session.Manager, target, typ, message string) {
	sessions.AddFlash(w, r, typ, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// pageParam reads the zero-based "page" query parameter. Invalid values mean the first page.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// idsParam collects the non-empty "ids" values of the query string and form.
func idsParam(r *http.Request) []string {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	var ids []string
	for _, id := range r.Form["ids"] {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
