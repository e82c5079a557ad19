package messagebroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Subjects published by the admin service.
const (
	SubjectUserCreated = "user.created"
	SubjectSmsSended   = "sms.sended"
)

// StatusSubject is the subject for delivery status changes reported through adapterID.
func StatusSubject(adapterID string) string { return fmt.Sprintf("sms.status.%s", adapterID) }

// ReceivedSubject is the subject for inbound messages reported through adapterID.
func ReceivedSubject(adapterID string) string { return fmt.Sprintf("sms.received.%s", adapterID) }

// PublishJSON marshals payload and publishes it. Failures are logged and returned;
// callers treat events as best effort.
func PublishJSON(ctx context.Context, pub Publisher, logger *slog.Logger, subject string, payload any) error {
	if pub == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal event payload", "subject", subject, "error", err)
		return err
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "subject", subject, "error", err)
		return err
	}
	logger.DebugContext(ctx, "Published event", "subject", subject)
	return nil
}
