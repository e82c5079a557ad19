package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raspisms/golang_services/internal/media_service/app"
	"github.com/raspisms/golang_services/internal/media_service/domain"
	"github.com/raspisms/golang_services/internal/platform/session"
)

const (
	mediaPath      = "/media"
	maxUploadBytes = 20 << 20
)

// MediaManager is the media surface used by MediaHandler.
type MediaManager interface {
	Upload(ctx context.Context, userID, filename string, content io.Reader) (*domain.Media, error)
	ListForUser(ctx context.Context, userID string, page int) ([]*domain.Media, error)
	DeleteForUser(ctx context.Context, userID, mediaID string) error
	LinkTo(ctx context.Context, userID, mediaID, kind, resourceID string) error
	UnlinkOf(ctx context.Context, userID, mediaID, kind, resourceID string) error
	UnlinkAllOf(ctx context.Context, userID, kind, resourceID string) (int64, error)
	ListFor(ctx context.Context, userID, kind, resourceID string) ([]*domain.Media, error)
	ListUnused(ctx context.Context, userID string) ([]*domain.Media, error)
}

type MediaHandler struct {
	media    MediaManager
	sessions *session.Manager
	logger   *slog.Logger
}

func NewMediaHandler(media MediaManager, sessions *session.Manager, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: media, sessions: sessions, logger: logger.With("handler", "media")}
}

// RegisterRoutes registers the JSON routes. They expect the CSRF header middleware.
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Post("/media", h.handleUpload)
	r.Get("/media", h.handleList)
	r.Get("/media/unused", h.handleListUnused)
	r.Get("/media/for/{kind}/{resource_id}", h.handleListFor)
}

// RegisterFormRoutes registers the routes carrying their CSRF token in the URL.
func (h *MediaHandler) RegisterFormRoutes(r chi.Router) {
	r.Post("/media/delete/{csrf}", h.handleDelete)
	r.Post("/media/{id}/link/{kind}/{resource_id}/{csrf}", h.handleLink)
	r.Post("/media/{id}/unlink/{kind}/{resource_id}/{csrf}", h.handleUnlink)
	r.Post("/media/unlink-all/{kind}/{resource_id}/{csrf}", h.handleUnlinkAll)
}

func (h *MediaHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A file is required in the \"file\" field")
		return
	}
	defer file.Close()

	m, err := h.media.Upload(r.Context(), s.UserID, header.Filename, file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Media uploaded", "mediaID", m.ID, "userID", s.UserID)
	respondWithJSON(w, http.StatusCreated, m)
}

func (h *MediaHandler) handleList(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	page := pageParam(r)
	medias, err := h.media.ListForUser(r.Context(), s.UserID, page)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PageResponse{Items: nonNil(medias), Page: page, PerPage: app.PerPage})
}

func (h *MediaHandler) handleListUnused(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	medias, err := h.media.ListUnused(r.Context(), s.UserID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(medias))
}

func (h *MediaHandler) handleListFor(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	medias, err := h.media.ListFor(r.Context(), s.UserID, chi.URLParam(r, "kind"), chi.URLParam(r, "resource_id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(medias))
}

func (h *MediaHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, "Invalid CSRF token.")
		return
	}
	ids := idsParam(r)
	if len(ids) == 0 {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashInfo, "No media selected.")
		return
	}

	failed := 0
	for _, id := range ids {
		if err := h.media.DeleteForUser(r.Context(), s.UserID, id); err != nil {
			failed++
			if !errors.Is(err, domain.ErrMediaNotFound) {
				h.logger.ErrorContext(r.Context(), "Failed to delete media", "mediaID", id, "error", err)
			}
		}
	}
	if failed > 0 {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, fmt.Sprintf("%d of %d media could not be deleted.", failed, len(ids)))
		return
	}
	redirectWithFlash(w, r, h.sessions, mediaPath, flashSuccess, "The media have been deleted.")
}

func (h *MediaHandler) handleLink(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, "Invalid CSRF token.")
		return
	}
	err := h.media.LinkTo(r.Context(), s.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "kind"), chi.URLParam(r, "resource_id"))
	if err != nil {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, h.linkFailure("link", err))
		return
	}
	redirectWithFlash(w, r, h.sessions, mediaPath, flashSuccess, "The media has been linked.")
}

func (h *MediaHandler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, "Invalid CSRF token.")
		return
	}
	err := h.media.UnlinkOf(r.Context(), s.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "kind"), chi.URLParam(r, "resource_id"))
	if err != nil {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, h.linkFailure("unlink", err))
		return
	}
	redirectWithFlash(w, r, h.sessions, mediaPath, flashSuccess, "The media has been unlinked.")
}

func (h *MediaHandler) handleUnlinkAll(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, "Invalid CSRF token.")
		return
	}
	n, err := h.media.UnlinkAllOf(r.Context(), s.UserID, chi.URLParam(r, "kind"), chi.URLParam(r, "resource_id"))
	if err != nil {
		redirectWithFlash(w, r, h.sessions, mediaPath, flashDanger, h.linkFailure("unlink", err))
		return
	}
	redirectWithFlash(w, r, h.sessions, mediaPath, flashSuccess, fmt.Sprintf("%d media unlinked.", n))
}

func (h *MediaHandler) linkFailure(action string, err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownResourceKind):
		return "Unknown message kind."
	case errors.Is(err, domain.ErrMediaNotFound):
		return "This media does not exist."
	case errors.Is(err, domain.ErrResourceNotFound):
		return "This message does not exist."
	case errors.Is(err, domain.ErrLinkNotFound):
		return "This media is not linked to this message."
	default:
		h.logger.Error("Media link operation failed", "action", action, "error", err)
		return fmt.Sprintf("Could not %s the media.", action)
	}
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
