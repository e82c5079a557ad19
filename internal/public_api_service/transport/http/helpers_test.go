package http_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/platform/session"
)

const testCSRF = "csrf-token"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSessions() *session.Manager {
	return session.NewManager("test-secret", time.Hour, false)
}

func adminSession() *session.Session {
	return &session.Session{UserID: "admin-1", IsAdmin: true, CSRF: testCSRF}
}

func userSession() *session.Session {
	return &session.Session{UserID: "user-1", CSRF: testCSRF}
}

// newTestRouter injects s into every request the way AuthMiddleware does.
func newTestRouter(s *session.Session, register func(r chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if s != nil {
				req = req.WithContext(session.WithContext(req.Context(), s))
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	return r
}

// flashesOf reads back the flash messages a response queued.
func flashesOf(t *testing.T, sessions *session.Manager, rec *httptest.ResponseRecorder) []session.Flash {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return sessions.Flashes(httptest.NewRecorder(), req)
}

func requireRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, location, rec.Header().Get("Location"))
}
