package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/user_service/domain"
)

type MockUserSource struct {
	mock.Mock
}

func (m *MockUserSource) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserSource) ValidateAPIKey(ctx context.Context, key string) (*domain.User, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// sessionEcho writes the authenticated user id.
var sessionEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	w.Write([]byte(s.UserID))
})

func TestAuthMiddleware_APIKey(t *testing.T) {
	validator := new(MockUserSource)
	validator.On("ValidateAPIKey", mock.Anything, "good").Return(&domain.User{ID: "u1", IsAdmin: true}, nil)
	validator.On("ValidateAPIKey", mock.Anything, "bad").Return(nil, assert.AnError)
	handler := AuthMiddleware(session.NewManager("s", time.Hour, false), validator, discardLogger)(sessionEcho)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "ApiKey good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	for _, header := range []string{"ApiKey bad", "Bearer good", "ApiKey"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestAuthMiddleware_SessionCookie(t *testing.T) {
	sessions := session.NewManager("s", time.Hour, false)
	users := new(MockUserSource)
	users.On("GetUser", mock.Anything, "u2").Return(&domain.User{ID: "u2"}, nil)
	handler := AuthMiddleware(sessions, users, discardLogger)(sessionEcho)

	issued := httptest.NewRecorder()
	_, err := sessions.Issue(issued, "u2", false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range issued.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// cookieRequest returns a request carrying a fresh session cookie for userID.
func cookieRequest(t *testing.T, sessions *session.Manager, userID string, admin bool) *http.Request {
	t.Helper()
	issued := httptest.NewRecorder()
	_, err := sessions.Issue(issued, userID, admin)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range issued.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAuthMiddleware_SessionReflectsStoredUser(t *testing.T) {
	sessions := session.NewManager("s", time.Hour, false)
	users := new(MockUserSource)
	users.On("GetUser", mock.Anything, "deleted-admin").Return(nil, assert.AnError)
	users.On("GetUser", mock.Anything, "demoted-admin").Return(&domain.User{ID: "demoted-admin", IsAdmin: false}, nil)
	users.On("GetUser", mock.Anything, "promoted-user").Return(&domain.User{ID: "promoted-user", IsAdmin: true}, nil)

	var seen *session.Session
	handler := AuthMiddleware(sessions, users, discardLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = session.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, cookieRequest(t, sessions, "deleted-admin", true))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, cookieRequest(t, sessions, "demoted-admin", true))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.False(t, seen.IsAdmin)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, cookieRequest(t, sessions, "promoted-user", false))
	require.NotNil(t, seen)
	assert.True(t, seen.IsAdmin)
	users.AssertExpectations(t)
}

func TestAuthMiddleware_DemotedAdminIsForbidden(t *testing.T) {
	sessions := session.NewManager("s", time.Hour, false)
	users := new(MockUserSource)
	users.On("GetUser", mock.Anything, "u1").Return(&domain.User{ID: "u1"}, nil)
	handler := AuthMiddleware(sessions, users, discardLogger)(RequireAdmin(discardLogger)(sessionEcho))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, cookieRequest(t, sessions, "u1", true))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(discardLogger)(sessionEcho)

	tests := []struct {
		name    string
		session *session.Session
		want    int
	}{
		{"admin", &session.Session{UserID: "u1", IsAdmin: true}, http.StatusOK},
		{"user", &session.Session{UserID: "u2"}, http.StatusForbidden},
		{"no session", nil, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.session != nil {
				req = req.WithContext(session.WithContext(req.Context(), tt.session))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireCSRFHeader(t *testing.T) {
	sessions := session.NewManager("s", time.Hour, false)
	handler := RequireCSRFHeader(sessions)(sessionEcho)
	s := &session.Session{UserID: "u1", CSRF: "token"}

	serve := func(method, token string, s *session.Session) int {
		req := httptest.NewRequest(method, "/", nil)
		req = req.WithContext(session.WithContext(req.Context(), s))
		if token != "" {
			req.Header.Set(CSRFHeader, token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "", s))
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "token", s))
	assert.Equal(t, http.StatusForbidden, serve(http.MethodPost, "wrong", s))
	assert.Equal(t, http.StatusForbidden, serve(http.MethodDelete, "", s))
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "", &session.Session{UserID: "u1", ViaAPIKey: true}))
}
