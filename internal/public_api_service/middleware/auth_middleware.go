package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/user_service/domain"
)

// CSRFHeader carries the session CSRF token on JSON mutations.
const CSRFHeader = "X-CSRF-Token"

// UserSource resolves API keys and session user ids to current accounts.
type UserSource interface {
	ValidateAPIKey(ctx context.Context, plainTextKey string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware authenticates requests with "Authorization: ApiKey <key>" or the session cookie.
// Cookie sessions are checked against the stored account, so a deleted user is rejected
// and the admin flag is the current one. The resulting session is stored in the request context.
func AuthMiddleware(sessions *session.Manager, users UserSource, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || parts[0] != "ApiKey" {
					logger.WarnContext(r.Context(), "Unsupported Authorization scheme")
					unauthorized(w, "Unsupported Authorization scheme")
					return
				}
				user, err := users.ValidateAPIKey(r.Context(), strings.TrimSpace(parts[1]))
				if err != nil {
					logger.WarnContext(r.Context(), "API key validation failed", "error", err)
					unauthorized(w, "Invalid API key")
					return
				}
				s := &session.Session{UserID: user.ID, IsAdmin: user.IsAdmin, ViaAPIKey: true}
				next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), s)))
				return
			}

			s, err := sessions.Load(r)
			if err != nil {
				unauthorized(w, "Authentication required")
				return
			}
			user, err := users.GetUser(r.Context(), s.UserID)
			if err != nil {
				logger.WarnContext(r.Context(), "Session user could not be loaded", "userID", s.UserID, "error", err)
				sessions.Clear(w)
				unauthorized(w, "Authentication required")
				return
			}
			if user.IsAdmin != s.IsAdmin {
				logger.InfoContext(r.Context(), "Session admin flag refreshed", "userID", s.UserID, "is_admin", user.IsAdmin)
				s.IsAdmin = user.IsAdmin
			}
			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), s)))
		})
	}
}

// RequireAdmin rejects authenticated non-admin users. AuthMiddleware must run first.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if s == nil {
				logger.ErrorContext(r.Context(), "Session not found in context. AuthMiddleware must run first.")
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !s.IsAdmin {
				logger.WarnContext(r.Context(), "Admin access denied", "userID", s.UserID)
				writeError(w, http.StatusForbidden, "Forbidden: administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCSRFHeader checks the CSRF header on unsafe methods of JSON endpoints.
// API key requests are exempt.
func RequireCSRFHeader(sessions *session.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if !sessions.VerifyCSRF(session.FromContext(r.Context()), r.Header.Get(CSRFHeader)) {
				writeError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
