package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

// --- Mocks ---

type MockPhoneRepository struct {
	mock.Mock
}

func (m *MockPhoneRepository) Create(ctx context.Context, phone *domain.Phone) error {
	args := m.Called(ctx, phone)
	if phone.ID == "" {
		phone.ID = "generated-phone-id"
	}
	return args.Error(0)
}

func (m *MockPhoneRepository) GetByID(ctx context.Context, id string) (*domain.Phone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Phone), args.Error(1)
}

func (m *MockPhoneRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Phone, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Phone), args.Error(1)
}

func (m *MockPhoneRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Phone, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*domain.Phone), args.Error(1)
}

func (m *MockPhoneRepository) ListAll(ctx context.Context) ([]*domain.Phone, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Phone), args.Error(1)
}

func (m *MockPhoneRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

type MockSendedRepository struct {
	mock.Mock
}

func (m *MockSendedRepository) Create(ctx context.Context, s *core_domain.Sended) error {
	args := m.Called(ctx, s)
	if s.ID == "" {
		s.ID = "generated-sended-id"
	}
	return args.Error(0)
}

func (m *MockSendedRepository) GetForUser(ctx context.Context, userID, id string) (*core_domain.Sended, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Sended), args.Error(1)
}

func (m *MockSendedRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Sended, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*core_domain.Sended), args.Error(1)
}

func (m *MockSendedRepository) UpdateStatusByUID(ctx context.Context, phoneID, uid string, status core_domain.SendedStatus) (*core_domain.Sended, error) {
	args := m.Called(ctx, phoneID, uid, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Sended), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

// --- Tests ---

// newTestService returns a service whose test adapter is confined to the returned root.
func newTestService(t *testing.T, phones *MockPhoneRepository, sended *MockSendedRepository, pub messagebroker.Publisher) (*MessagingService, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := smsprovider.DefaultRegistry(smsprovider.Deps{Logger: logger, FileRoot: root})
	return NewMessagingService(phones, sended, registry, pub, logger), root
}

// filePhone returns a test adapter phone using directory name below the service root.
func filePhone(t *testing.T, name string) *domain.Phone {
	t.Helper()
	data, err := json.Marshal(map[string]string{"directory": name})
	require.NoError(t, err)
	return &domain.Phone{ID: "phone-1", UserID: "user-1", Name: "dev", Adapter: smsprovider.FileAdapterID, AdapterData: data}
}

func TestMessagingService_Send_Success(t *testing.T) {
	phones := new(MockPhoneRepository)
	sended := new(MockSendedRepository)
	pub := new(MockPublisher)
	svc, root := newTestService(t, phones, sended, pub)
	dir := filepath.Join(root, "dev")
	require.NoError(t, os.Mkdir(dir, 0o755))

	phones.On("GetForUser", mock.Anything, "user-1", "phone-1").Return(filePhone(t, "dev"), nil)
	sended.On("Create", mock.Anything, mock.MatchedBy(func(s *core_domain.Sended) bool {
		return s.UID != "" && s.Status == core_domain.SendedStatusUnknown && s.Flash && s.Error == ""
	})).Return(nil)
	pub.On("Publish", mock.Anything, messagebroker.SubjectSmsSended, mock.Anything).Return(nil)

	s, err := svc.Send(context.Background(), "user-1", "phone-1", "+33600000000", "hello", true)
	require.NoError(t, err)
	assert.Equal(t, "phone-1", s.PhoneID)
	assert.NotEmpty(t, s.UID)

	content, err := os.ReadFile(filepath.Join(dir, "sended.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(content), s.UID)

	phones.AssertExpectations(t)
	sended.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestMessagingService_Send_AdapterFailureIsRecorded(t *testing.T) {
	phones := new(MockPhoneRepository)
	sended := new(MockSendedRepository)
	svc, _ := newTestService(t, phones, sended, messagebroker.NoopPublisher{})

	phones.On("GetForUser", mock.Anything, "user-1", "phone-1").Return(filePhone(t, "missing"), nil)
	sended.On("Create", mock.Anything, mock.MatchedBy(func(s *core_domain.Sended) bool {
		return s.Status == core_domain.SendedStatusFailed && s.Error != "" && s.UID == ""
	})).Return(nil)

	s, err := svc.Send(context.Background(), "user-1", "phone-1", "+33600000000", "hello", false)
	require.Error(t, err)
	assert.True(t, smsprovider.IsKind(err, smsprovider.KindTransport))
	require.NotNil(t, s)
	assert.Equal(t, core_domain.SendedStatusFailed, s.Status)
	sended.AssertExpectations(t)
}

func TestMessagingService_Send_Validation(t *testing.T) {
	phones := new(MockPhoneRepository)
	sended := new(MockSendedRepository)
	svc, _ := newTestService(t, phones, sended, nil)

	_, err := svc.Send(context.Background(), "user-1", "phone-1", "  ", "hello", false)
	assert.ErrorIs(t, err, ErrInvalidDestination)

	phones.On("GetForUser", mock.Anything, "user-1", "other").Return(nil, domain.ErrPhoneNotFound)
	_, err = svc.Send(context.Background(), "user-1", "other", "+336", "hello", false)
	assert.ErrorIs(t, err, domain.ErrPhoneNotFound)
	sended.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessagingService_CreatePhone(t *testing.T) {
	phones := new(MockPhoneRepository)
	svc, _ := newTestService(t, phones, new(MockSendedRepository), nil)

	_, err := svc.CreatePhone(context.Background(), "user-1", "octo", smsprovider.OctopushShortcodeID, json.RawMessage(`{"login":"l"}`))
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Contains(t, err.Error(), "api_key is required")

	_, err = svc.CreatePhone(context.Background(), "user-1", "octo", "unknown", nil)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = svc.CreatePhone(context.Background(), "user-1", " ", smsprovider.FileAdapterID, json.RawMessage(`{"directory":"dev"}`))
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = svc.CreatePhone(context.Background(), "user-1", "dev", smsprovider.FileAdapterID, json.RawMessage(`{"directory":"/etc"}`))
	assert.ErrorIs(t, err, ErrInvalidPhone)
	_, err = svc.CreatePhone(context.Background(), "user-1", "dev", smsprovider.FileAdapterID, json.RawMessage(`{"directory":"../outside"}`))
	assert.ErrorIs(t, err, ErrInvalidPhone)
	phones.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	phones.On("Create", mock.Anything, mock.AnythingOfType("*domain.Phone")).Return(nil)
	phone, err := svc.CreatePhone(context.Background(), "user-1", "octo", smsprovider.OctopushShortcodeID, json.RawMessage(`{"login":"l","api_key":"k"}`))
	require.NoError(t, err)
	assert.Equal(t, "generated-phone-id", phone.ID)
	assert.Equal(t, smsprovider.OctopushShortcodeID, phone.Adapter)
}

func TestMessagingService_TestPhone(t *testing.T) {
	phones := new(MockPhoneRepository)
	svc, root := newTestService(t, phones, new(MockSendedRepository), nil)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dev"), 0o755))

	phones.On("GetForUser", mock.Anything, "user-1", "phone-1").Return(filePhone(t, "dev"), nil)
	ok, err := svc.TestPhone(context.Background(), "user-1", "phone-1")
	require.NoError(t, err)
	assert.True(t, ok)

	broken := &domain.Phone{ID: "phone-2", UserID: "user-1", Adapter: smsprovider.OctopushShortcodeID, AdapterData: json.RawMessage(`{}`)}
	phones.On("GetForUser", mock.Anything, "user-1", "phone-2").Return(broken, nil)
	ok, err = svc.TestPhone(context.Background(), "user-1", "phone-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessagingService_ListSended(t *testing.T) {
	sended := new(MockSendedRepository)
	svc, _ := newTestService(t, new(MockPhoneRepository), sended, nil)

	sended.On("ListForUser", mock.Anything, "user-1", PerPage, 2*PerPage).Return([]*core_domain.Sended{{ID: "s1"}}, nil)
	list, err := svc.ListSended(context.Background(), "user-1", 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	sended.On("ListForUser", mock.Anything, "user-2", PerPage, 0).Return([]*core_domain.Sended(nil), fmt.Errorf("db down"))
	_, err = svc.ListSended(context.Background(), "user-2", -3)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSendedNotFound))
}
