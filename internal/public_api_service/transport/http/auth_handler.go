package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/raspisms/golang_services/internal/platform/session"
	userapp "github.com/raspisms/golang_services/internal/user_service/app"
	"github.com/raspisms/golang_services/internal/user_service/domain"
)

// Authenticator checks credentials and loads users.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// AuthHandler handles authentication related HTTP requests.
type AuthHandler struct {
	auth     Authenticator
	sessions *session.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator, sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "auth"),
	}
}

// RegisterRoutes registers the unauthenticated routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// RegisterProtectedRoutes registers routes that need AuthMiddleware.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.ErrorContext(r.Context(), "Login failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s, err := h.sessions.Issue(w, user.ID, user.IsAdmin)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to issue session", "userID", user.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	h.logger.InfoContext(r.Context(), "User logged in", "userID", user.ID)
	respondWithJSON(w, http.StatusOK, SessionResponse{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin, CSRF: s.CSRF})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := h.auth.GetUser(r.Context(), s.UserID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin, CSRF: s.CSRF})
}
