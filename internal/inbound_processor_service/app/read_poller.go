package app

import (
	"context"
	"log/slog"
	"time"

	smsdomain "github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

// ReadPoller periodically reads inbound messages from adapters that support polling.
type ReadPoller struct {
	phones    smsdomain.PhoneRepository
	processor *ReceptionProcessor
	interval  time.Duration
	logger    *slog.Logger
}

func NewReadPoller(phones smsdomain.PhoneRepository, processor *ReceptionProcessor, interval time.Duration, logger *slog.Logger) *ReadPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReadPoller{
		phones:    phones,
		processor: processor,
		interval:  interval,
		logger:    logger.With("component", "read_poller"),
	}
}

// Run polls until ctx is cancelled. It blocks and always returns nil.
func (p *ReadPoller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting read poller", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Read poller stopped")
			return nil
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce reads every phone once. A failing phone is logged and does not stop the others.
// It returns the number of stored messages.
func (p *ReadPoller) PollOnce(ctx context.Context) int {
	start := time.Now()
	defer func() { readPollDurationHist.Observe(time.Since(start).Seconds()) }()

	phones, err := p.phones.ListAll(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list phones for polling", "error", err)
		return 0
	}
	total := 0
	for _, phone := range phones {
		if ctx.Err() != nil {
			return total
		}
		stored, err := p.processor.PollPhone(ctx, phone)
		total += len(stored)
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to poll phone", "phone_id", phone.ID, "adapter", phone.Adapter, "error", err)
		}
	}
	return total
}
