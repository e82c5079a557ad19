package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/inbound_processor_service/domain"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	smsdomain "github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

const (
	sourceCallback = "callback"
	sourcePoll     = "poll"
)

// PerPage is the page size of the received list.
const PerPage = 25

// ReceivedEvent is published on messagebroker.ReceivedSubject(adapter).
type ReceivedEvent struct {
	ReceivedID string `json:"received_id"`
	UserID     string `json:"user_id"`
	PhoneID    string `json:"phone_id"`
	Origin     string `json:"origin"`
}

// ReceptionProcessor stores inbound messages reported by adapters, pushed or polled.
type ReceptionProcessor struct {
	phones    smsdomain.PhoneRepository
	received  domain.ReceivedRepository
	registry  *smsprovider.Registry
	publisher messagebroker.Publisher
	logger    *slog.Logger
}

// NewReceptionProcessor creates a new ReceptionProcessor instance.
func NewReceptionProcessor(
	phones smsdomain.PhoneRepository,
	received domain.ReceivedRepository,
	registry *smsprovider.Registry,
	publisher messagebroker.Publisher,
	logger *slog.Logger,
) *ReceptionProcessor {
	return &ReceptionProcessor{
		phones:    phones,
		received:  received,
		registry:  registry,
		publisher: publisher,
		logger:    logger.With("component", "reception_processor"),
	}
}

// ProcessReceptionCallback parses an inbound push for phoneID and stores every message it carries.
func (p *ReceptionProcessor) ProcessReceptionCallback(ctx context.Context, phoneID string, r *http.Request) ([]*core_domain.Received, error) {
	phone, err := p.phones.GetByID(ctx, phoneID)
	if err != nil {
		return nil, err
	}
	adapter, err := p.registry.Open(phone.Adapter, phone.AdapterData)
	if err != nil {
		return nil, fmt.Errorf("opening adapter for phone %s: %w", phone.ID, err)
	}
	if !adapter.Supports(smsprovider.CapabilityReception) {
		return nil, fmt.Errorf("%w: %s", smsprovider.ErrCapabilityUnsupported, smsprovider.CapabilityReception)
	}

	incoming, err := adapter.ReceptionCallback(r)
	if err != nil {
		inboundSMSProcessedCounter.WithLabelValues(phone.Adapter, sourceCallback, "error_parsing").Inc()
		p.logger.WarnContext(ctx, "Failed to parse reception callback", "phone_id", phone.ID, "adapter", phone.Adapter, "error", err)
		return nil, err
	}
	return p.store(ctx, phone, incoming, sourceCallback)
}

// PollPhone reads pending messages of a phone whose adapter supports polling.
// Phones without the read capability are skipped. Adapters implementing
// smsprovider.ReadCommitter are acknowledged with the number of stored messages.
func (p *ReceptionProcessor) PollPhone(ctx context.Context, phone *smsdomain.Phone) ([]*core_domain.Received, error) {
	adapter, err := p.registry.Open(phone.Adapter, phone.AdapterData)
	if err != nil {
		return nil, fmt.Errorf("opening adapter for phone %s: %w", phone.ID, err)
	}
	if !adapter.Supports(smsprovider.CapabilityRead) {
		return nil, nil
	}
	incoming, err := adapter.Read(ctx)
	if err != nil {
		inboundSMSProcessedCounter.WithLabelValues(phone.Adapter, sourcePoll, "error_parsing").Inc()
		return nil, err
	}
	stored, err := p.store(ctx, phone, incoming, sourcePoll)
	if committer, ok := adapter.(smsprovider.ReadCommitter); ok {
		if cerr := committer.CommitRead(ctx, len(stored)); cerr != nil {
			p.logger.ErrorContext(ctx, "Failed to acknowledge read messages", "phone_id", phone.ID, "error", cerr)
			if err == nil {
				err = fmt.Errorf("acknowledging read messages: %w", cerr)
			}
		}
	}
	return stored, err
}

// ListReceived returns one page (zero-based) of the user's inbound messages.
func (p *ReceptionProcessor) ListReceived(ctx context.Context, userID string, page int) ([]*core_domain.Received, error) {
	return p.received.ListForUser(ctx, userID, PerPage, database.Offset(page, PerPage))
}

func (p *ReceptionProcessor) MarkRead(ctx context.Context, userID, id string) error {
	return p.received.MarkRead(ctx, userID, id)
}

func (p *ReceptionProcessor) store(ctx context.Context, phone *smsdomain.Phone, incoming []core_domain.IncomingSMS, source string) ([]*core_domain.Received, error) {
	stored := make([]*core_domain.Received, 0, len(incoming))
	for _, sms := range incoming {
		msg := &core_domain.Received{
			UserID:  phone.UserID,
			PhoneID: phone.ID,
			Origin:  sms.Origin,
			Text:    sms.Text,
			Status:  core_domain.ReceivedStatusUnread,
			At:      sms.At,
		}
		if err := p.received.Create(ctx, msg); err != nil {
			inboundSMSProcessedCounter.WithLabelValues(phone.Adapter, source, "error_db_save").Inc()
			p.logger.ErrorContext(ctx, "Failed to save received message", "phone_id", phone.ID, "error", err)
			return stored, fmt.Errorf("saving received message: %w", err)
		}
		inboundSMSProcessedCounter.WithLabelValues(phone.Adapter, source, "success").Inc()
		stored = append(stored, msg)

		_ = messagebroker.PublishJSON(ctx, p.publisher, p.logger, messagebroker.ReceivedSubject(phone.Adapter), ReceivedEvent{
			ReceivedID: msg.ID,
			UserID:     msg.UserID,
			PhoneID:    msg.PhoneID,
			Origin:     msg.Origin,
		})
	}
	if len(stored) > 0 {
		p.logger.InfoContext(ctx, "Stored received messages", "phone_id", phone.ID, "count", len(stored), "source", source)
	}
	return stored, nil
}
