package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/public_api_service/middleware"
	userapp "github.com/raspisms/golang_services/internal/user_service/app"
	"github.com/raspisms/golang_services/internal/user_service/domain"
)

const (
	usersPath   = "/users"
	userAddPath = "/users/add"

	flashSuccess = "success"
	flashDanger  = "danger"
	flashInfo    = "info"
)

// UserManager is the user administration surface.
type UserManager interface {
	CreateUser(ctx context.Context, email, password string, isAdmin bool) (*domain.User, error)
	ListUsers(ctx context.Context, page int) ([]*domain.User, int, error)
	DeleteUsers(ctx context.Context, ids []string) int
	AssignAPIKeyToUser(ctx context.Context, userID string) (string, error)
}

// UserHandler is the form based user controller. Every mutation verifies the CSRF
// token from the URL and ends with a flash message and a redirect.
type UserHandler struct {
	users    UserManager
	sessions *session.Manager
	logger   *slog.Logger
}

func NewUserHandler(users UserManager, sessions *session.Manager, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, logger: logger.With("handler", "users")}
}

// RegisterRoutes registers user routes. AuthMiddleware must run first.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleList)
	r.With(middleware.RequireAdmin(h.logger)).Get("/users/add", h.handleAdd)
	r.Post("/users/create/{csrf}", h.handleCreate)
	r.Post("/users/delete/{csrf}", h.handleDelete)
	r.Post("/users/{id}/api-key/{csrf}", h.handleAPIKey)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	users, total, err := h.users.ListUsers(r.Context(), page)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	resp := UserListResponse{
		Users:   make([]UserResponse, 0, len(users)),
		Page:    page,
		PerPage: userapp.PerPage,
		Total:   total,
		Flashes: h.sessions.Flashes(w, r),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, UserResponse{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	respondWithJSON(w, http.StatusOK, UserFormResponse{CSRF: s.CSRF, Flashes: h.sessions.Flashes(w, r)})
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, userAddPath, flashDanger, "Invalid CSRF token.")
		return
	}
	if !s.IsAdmin {
		redirectWithFlash(w, r, h.sessions, userAddPath, flashDanger, "Only administrators can create users.")
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, h.sessions, userAddPath, flashDanger, "Invalid form.")
		return
	}

	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	isAdmin := formBool(r.PostForm.Get("admin"))

	user, err := h.users.CreateUser(r.Context(), email, password, isAdmin)
	if err != nil {
		msg := createUserFailure(err)
		if msg == genericCreateFailure {
			h.logger.ErrorContext(r.Context(), "Failed to create user", "email", email, "error", err)
		}
		redirectWithFlash(w, r, h.sessions, userAddPath, flashDanger, msg)
		return
	}

	h.logger.InfoContext(r.Context(), "User created", "userID", user.ID, "by", s.UserID)
	redirectWithFlash(w, r, h.sessions, usersPath, flashSuccess, "The user has been created and the credentials emailed.")
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		redirectWithFlash(w, r, h.sessions, usersPath, flashDanger, "Invalid CSRF token.")
		return
	}
	if !s.IsAdmin {
		redirectWithFlash(w, r, h.sessions, usersPath, flashDanger, "Only administrators can delete users.")
		return
	}

	ids := idsParam(r)
	if len(ids) == 0 {
		redirectWithFlash(w, r, h.sessions, usersPath, flashInfo, "No user selected.")
		return
	}

	failed := h.users.DeleteUsers(r.Context(), ids)
	if failed > 0 {
		h.logger.WarnContext(r.Context(), "Some users could not be deleted", "failed", failed, "requested", len(ids))
		redirectWithFlash(w, r, h.sessions, usersPath, flashDanger, fmt.Sprintf("%d of %d users could not be deleted.", failed, len(ids)))
		return
	}
	redirectWithFlash(w, r, h.sessions, usersPath, flashSuccess, "The users have been deleted.")
}

func (h *UserHandler) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if !h.sessions.VerifyCSRF(s, chi.URLParam(r, "csrf")) {
		respondWithError(w, http.StatusForbidden, "Invalid CSRF token")
		return
	}
	userID := chi.URLParam(r, "id")
	if !s.IsAdmin && s.UserID != userID {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	key, err := h.users.AssignAPIKeyToUser(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "API key regenerated", "userID", userID, "by", s.UserID)
	respondWithJSON(w, http.StatusOK, APIKeyResponse{UserID: userID, APIKey: key})
}

const genericCreateFailure = "Could not create the user."

func createUserFailure(err error) string {
	switch {
	case errors.Is(err, userapp.ErrEmailRequired):
		return "You must provide an email address."
	case errors.Is(err, userapp.ErrInvalidEmail):
		return "The email address is not valid."
	case errors.Is(err, userapp.ErrEmailExists):
		return "This email address is already in use."
	case errors.Is(err, userapp.ErrMailFailed):
		return "The credentials email could not be sent, the user was not created."
	default:
		return genericCreateFailure
	}
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}
