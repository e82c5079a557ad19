package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

// PerPage is the page size of message lists.
const PerPage = 25

var (
	ErrInvalidPhone       = errors.New("invalid phone")
	ErrInvalidDestination = errors.New("destination is required")
)

// SendedEvent is published on messagebroker.SubjectSmsSended.
type SendedEvent struct {
	SendedID string                   `json:"sended_id"`
	UserID   string                   `json:"user_id"`
	PhoneID  string                   `json:"phone_id"`
	Adapter  string                   `json:"adapter"`
	UID      string                   `json:"uid,omitempty"`
	Status   core_domain.SendedStatus `json:"status"`
	Error    string                   `json:"error,omitempty"`
}

// MessagingService manages phones and sends messages through their adapters.
type MessagingService struct {
	phones    domain.PhoneRepository
	sended    domain.SendedRepository
	registry  *smsprovider.Registry
	publisher messagebroker.Publisher
	logger    *slog.Logger
}

func NewMessagingService(
	phones domain.PhoneRepository,
	sended domain.SendedRepository,
	registry *smsprovider.Registry,
	publisher messagebroker.Publisher,
	logger *slog.Logger,
) *MessagingService {
	return &MessagingService{
		phones:    phones,
		sended:    sended,
		registry:  registry,
		publisher: publisher,
		logger:    logger.With("service", "messaging"),
	}
}

// Adapters describes every adapter a phone can be configured with.
func (s *MessagingService) Adapters() []smsprovider.Meta {
	return s.registry.Metas()
}

// CreatePhone validates the adapter configuration through the registry before storing it.
func (s *MessagingService) CreatePhone(ctx context.Context, userID, name, adapterID string, data json.RawMessage) (*domain.Phone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPhone)
	}
	if _, err := s.registry.Open(adapterID, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	phone := &domain.Phone{UserID: userID, Name: name, Adapter: adapterID, AdapterData: data}
	if err := s.phones.Create(ctx, phone); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Phone created", "phone_id", phone.ID, "user_id", userID, "adapter", adapterID)
	return phone, nil
}

func (s *MessagingService) ListPhones(ctx context.Context, userID string) ([]*domain.Phone, error) {
	return s.phones.ListForUser(ctx, userID)
}

func (s *MessagingService) DeletePhone(ctx context.Context, userID, phoneID string) error {
	return s.phones.DeleteForUser(ctx, userID, phoneID)
}

// TestPhone runs the adapter connectivity check of a user's phone.
func (s *MessagingService) TestPhone(ctx context.Context, userID, phoneID string) (bool, error) {
	phone, err := s.phones.GetForUser(ctx, userID, phoneID)
	if err != nil {
		return false, err
	}
	adapter, err := s.registry.Open(phone.Adapter, phone.AdapterData)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored phone configuration is invalid", "phone_id", phone.ID, "error", err)
		return false, nil
	}
	return adapter.Test(ctx), nil
}

// Send hands one message to the phone's adapter and records the outcome.
// Adapter failures are stored on the Sended row (status failed) and also returned.
func (s *MessagingService) Send(ctx context.Context, userID, phoneID, destination, text string, flash bool) (*core_domain.Sended, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrInvalidDestination
	}
	phone, err := s.phones.GetForUser(ctx, userID, phoneID)
	if err != nil {
		return nil, err
	}

	sended := &core_domain.Sended{
		UserID:      userID,
		PhoneID:     phone.ID,
		Destination: destination,
		Text:        text,
		Status:      core_domain.SendedStatusUnknown,
		At:          time.Now().UTC(),
	}

	adapter, sendErr := s.registry.Open(phone.Adapter, phone.AdapterData)
	if sendErr == nil {
		if flash && !adapter.Supports(smsprovider.CapabilityFlash) {
			s.logger.InfoContext(ctx, "Adapter does not support flash messages, sending as normal SMS", "adapter", phone.Adapter)
			flash = false
		}
		sended.Flash = flash

		start := time.Now()
		sended.UID, sendErr = adapter.Send(ctx, destination, text, flash)
		smsSendingDurationHist.WithLabelValues(phone.Adapter).Observe(time.Since(start).Seconds())
	}

	if sendErr != nil {
		sended.Status = core_domain.SendedStatusFailed
		sended.Error = sendErr.Error()
		smsSendingProcessedCounter.WithLabelValues(phone.Adapter, outcomeLabel(sendErr)).Inc()
		s.logger.WarnContext(ctx, "Adapter send failed", "phone_id", phone.ID, "adapter", phone.Adapter, "error", sendErr)
	} else {
		smsSendingProcessedCounter.WithLabelValues(phone.Adapter, "success").Inc()
	}

	if err := s.sended.Create(ctx, sended); err != nil {
		s.logger.ErrorContext(ctx, "Failed to store sended message", "phone_id", phone.ID, "error", err)
		return nil, fmt.Errorf("storing sended message: %w", err)
	}

	_ = messagebroker.PublishJSON(ctx, s.publisher, s.logger, messagebroker.SubjectSmsSended, SendedEvent{
		SendedID: sended.ID,
		UserID:   userID,
		PhoneID:  phone.ID,
		Adapter:  phone.Adapter,
		UID:      sended.UID,
		Status:   sended.Status,
		Error:    sended.Error,
	})

	if sendErr != nil {
		return sended, sendErr
	}
	return sended, nil
}

// ListSended returns one page (zero-based) of the user's outbound messages.
func (s *MessagingService) ListSended(ctx context.Context, userID string, page int) ([]*core_domain.Sended, error) {
	return s.sended.ListForUser(ctx, userID, PerPage, database.Offset(page, PerPage))
}

func outcomeLabel(err error) string {
	switch {
	case smsprovider.IsKind(err, smsprovider.KindTransport):
		return "error_transport"
	case smsprovider.IsKind(err, smsprovider.KindApplication):
		return "error_application"
	default:
		return "error_validation"
	}
}
