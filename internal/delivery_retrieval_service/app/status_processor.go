package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	smsdomain "github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

// StatusChangedEvent is published on messagebroker.StatusSubject(adapter).
type StatusChangedEvent struct {
	SendedID string                   `json:"sended_id"`
	UserID   string                   `json:"user_id"`
	PhoneID  string                   `json:"phone_id"`
	UID      string                   `json:"uid"`
	Status   core_domain.SendedStatus `json:"status"`
}

// StatusProcessor applies carrier delivery reports to sended messages.
type StatusProcessor struct {
	phones    smsdomain.PhoneRepository
	sended    smsdomain.SendedRepository
	registry  *smsprovider.Registry
	publisher messagebroker.Publisher
	logger    *slog.Logger
}

func NewStatusProcessor(
	phones smsdomain.PhoneRepository,
	sended smsdomain.SendedRepository,
	registry *smsprovider.Registry,
	publisher messagebroker.Publisher,
	logger *slog.Logger,
) *StatusProcessor {
	return &StatusProcessor{
		phones:    phones,
		sended:    sended,
		registry:  registry,
		publisher: publisher,
		logger:    logger.With("component", "status_processor"),
	}
}

// ProcessStatusCallback parses a status push received for phoneID and updates the matching sended row.
// It returns smsdomain.ErrPhoneNotFound, smsprovider.ErrCapabilityUnsupported,
// an adapter validation error or smsdomain.ErrSendedNotFound.
func (p *StatusProcessor) ProcessStatusCallback(ctx context.Context, phoneID string, r *http.Request) (*core_domain.Sended, error) {
	phone, err := p.phones.GetByID(ctx, phoneID)
	if err != nil {
		return nil, err
	}
	adapter, err := p.registry.Open(phone.Adapter, phone.AdapterData)
	if err != nil {
		return nil, fmt.Errorf("opening adapter for phone %s: %w", phone.ID, err)
	}
	if !adapter.Supports(smsprovider.CapabilityStatusChange) {
		statusCallbacksProcessedCounter.WithLabelValues(phone.Adapter, "error").Inc()
		return nil, fmt.Errorf("%w: %s", smsprovider.ErrCapabilityUnsupported, smsprovider.CapabilityStatusChange)
	}

	change, err := adapter.StatusChangeCallback(r)
	if err != nil {
		statusCallbacksProcessedCounter.WithLabelValues(phone.Adapter, "error").Inc()
		p.logger.WarnContext(ctx, "Failed to parse status callback", "phone_id", phone.ID, "adapter", phone.Adapter, "error", err)
		return nil, err
	}

	p.logger.DebugContext(ctx, "Processing status change", "phone_id", phone.ID, "uid", change.UID, "status", change.Status)
	sended, err := p.sended.UpdateStatusByUID(ctx, phone.ID, change.UID, change.Status)
	if err != nil {
		statusCallbacksProcessedCounter.WithLabelValues(phone.Adapter, "error").Inc()
		p.logger.WarnContext(ctx, "Failed to update sended status", "phone_id", phone.ID, "uid", change.UID, "error", err)
		return nil, err
	}
	statusCallbacksProcessedCounter.WithLabelValues(phone.Adapter, string(change.Status)).Inc()

	_ = messagebroker.PublishJSON(ctx, p.publisher, p.logger, messagebroker.StatusSubject(phone.Adapter), StatusChangedEvent{
		SendedID: sended.ID,
		UserID:   sended.UserID,
		PhoneID:  phone.ID,
		UID:      change.UID,
		Status:   change.Status,
	})
	p.logger.InfoContext(ctx, "Sended status updated", "sended_id", sended.ID, "status", change.Status)
	return sended, nil
}
