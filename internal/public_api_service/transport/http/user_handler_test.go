package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/platform/session"
	httptransport "github.com/raspisms/golang_services/internal/public_api_service/transport/http"
	userapp "github.com/raspisms/golang_services/internal/user_service/app"
	"github.com/raspisms/golang_services/internal/user_service/domain"
)

type MockUserManager struct {
	mock.Mock
}

func (m *MockUserManager) CreateUser(ctx context.Context, email, password string, isAdmin bool) (*domain.User, error) {
	args := m.Called(ctx, email, password, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserManager) ListUsers(ctx context.Context, page int) ([]*domain.User, int, error) {
	args := m.Called(ctx, page)
	return args.Get(0).([]*domain.User), args.Int(1), args.Error(2)
}

func (m *MockUserManager) DeleteUsers(ctx context.Context, ids []string) int {
	return m.Called(ctx, ids).Int(0)
}

func (m *MockUserManager) AssignAPIKeyToUser(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func setupUserHandler(s *session.Session) (*MockUserManager, *session.Manager, chi.Router) {
	users := new(MockUserManager)
	sessions := newSessions()
	handler := httptransport.NewUserHandler(users, sessions, testLogger)
	return users, sessions, newTestRouter(s, handler.RegisterRoutes)
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestUserHandler_Create_Success(t *testing.T) {
	users, sessions, router := setupUserHandler(adminSession())
	users.On("CreateUser", mock.Anything, "new@example.com", "", true).
		Return(&domain.User{ID: "u-9", Email: "new@example.com", IsAdmin: true}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postForm("/users/create/"+testCSRF, url.Values{"email": {"new@example.com"}, "admin": {"on"}}))

	requireRedirect(t, rec, "/users")
	flashes := flashesOf(t, sessions, rec)
	require.Len(t, flashes, 1)
	assert.Equal(t, "success", flashes[0].Type)
	users.AssertExpectations(t)
}

func TestUserHandler_Create_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		session *session.Session
		csrf    string
		message string
	}{
		{"wrong csrf", adminSession(), "forged", "Invalid CSRF token."},
		{"not admin", userSession(), testCSRF, "Only administrators can create users."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, sessions, router := setupUserHandler(tt.session)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, postForm("/users/create/"+tt.csrf, url.Values{"email": {"new@example.com"}}))

			requireRedirect(t, rec, "/users/add")
			assert.Equal(t, []session.Flash{{Type: "danger", Message: tt.message}}, flashesOf(t, sessions, rec))
			users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUserHandler_Create_ServiceErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{userapp.ErrEmailRequired, "You must provide an email address."},
		{userapp.ErrInvalidEmail, "The email address is not valid."},
		{userapp.ErrEmailExists, "This email address is already in use."},
		{userapp.ErrMailFailed, "The credentials email could not be sent, the user was not created."},
		{errors.New("db down"), "Could not create the user."},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			users, sessions, router := setupUserHandler(adminSession())
			users.On("CreateUser", mock.Anything, "x", "secret", false).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, postForm("/users/create/"+testCSRF, url.Values{"email": {"x"}, "password": {"secret"}}))

			requireRedirect(t, rec, "/users/add")
			assert.Equal(t, []session.Flash{{Type: "danger", Message: tt.message}}, flashesOf(t, sessions, rec))
		})
	}
}

func TestUserHandler_Delete(t *testing.T) {
	t.Run("partial failure", func(t *testing.T) {
		users, sessions, router := setupUserHandler(adminSession())
		users.On("DeleteUsers", mock.Anything, []string{"a", "b"}).Return(1)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/delete/"+testCSRF+"?ids=a&ids=b&ids=", nil))

		requireRedirect(t, rec, "/users")
		assert.Equal(t, []session.Flash{{Type: "danger", Message: "1 of 2 users could not be deleted."}}, flashesOf(t, sessions, rec))
	})

	t.Run("success", func(t *testing.T) {
		users, sessions, router := setupUserHandler(adminSession())
		users.On("DeleteUsers", mock.Anything, []string{"a"}).Return(0)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/delete/"+testCSRF+"?ids=a", nil))

		requireRedirect(t, rec, "/users")
		assert.Equal(t, "success", flashesOf(t, sessions, rec)[0].Type)
	})

	t.Run("non admin", func(t *testing.T) {
		users, sessions, router := setupUserHandler(userSession())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/delete/"+testCSRF+"?ids=a", nil))

		requireRedirect(t, rec, "/users")
		assert.Equal(t, "danger", flashesOf(t, sessions, rec)[0].Type)
		users.AssertNotCalled(t, "DeleteUsers", mock.Anything, mock.Anything)
	})

	t.Run("wrong csrf", func(t *testing.T) {
		users, _, router := setupUserHandler(adminSession())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/delete/nope?ids=a", nil))

		requireRedirect(t, rec, "/users")
		users.AssertNotCalled(t, "DeleteUsers", mock.Anything, mock.Anything)
	})
}

func TestUserHandler_List(t *testing.T) {
	users, sessions, router := setupUserHandler(userSession())
	users.On("ListUsers", mock.Anything, 2).Return([]*domain.User{{ID: "u1", Email: "a@b.c", HashedPassword: "hash"}}, 51, nil)

	// A flash queued by a previous redirect is returned once.
	queued := httptest.NewRecorder()
	sessions.AddFlash(queued, httptest.NewRequest(http.MethodGet, "/", nil), "success", "done")
	req := httptest.NewRequest(http.MethodGet, "/users?page=2", nil)
	for _, c := range queued.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hash")
	var resp httptransport.UserListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 51, resp.Total)
	assert.Equal(t, userapp.PerPage, resp.PerPage)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "a@b.c", resp.Users[0].Email)
	assert.Equal(t, []session.Flash{{Type: "success", Message: "done"}}, resp.Flashes)
}

func TestUserHandler_Add(t *testing.T) {
	_, _, router := setupUserHandler(adminSession())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/add", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httptransport.UserFormResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testCSRF, resp.CSRF)

	_, _, router = setupUserHandler(userSession())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/add", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandler_APIKey(t *testing.T) {
	t.Run("self", func(t *testing.T) {
		users, _, router := setupUserHandler(userSession())
		users.On("AssignAPIKeyToUser", mock.Anything, "user-1").Return("plain-key", nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/user-1/api-key/"+testCSRF, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp httptransport.APIKeyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "plain-key", resp.APIKey)
	})

	t.Run("other user", func(t *testing.T) {
		users, _, router := setupUserHandler(userSession())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/user-2/api-key/"+testCSRF, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		users.AssertNotCalled(t, "AssignAPIKeyToUser", mock.Anything, mock.Anything)
	})

	t.Run("admin on missing user", func(t *testing.T) {
		users, _, router := setupUserHandler(adminSession())
		users.On("AssignAPIKeyToUser", mock.Anything, "ghost").Return("", userapp.ErrUserNotFound)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/ghost/api-key/"+testCSRF, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
