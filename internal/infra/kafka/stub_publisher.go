package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionRevoked logs session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent("session.revoked", event.UserID, event.RevokedAt, map[string]any{
		"session_id": event.SessionID,
		"reason":     event.Reason,
		"ip_address": event.IPAddress,
	})
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent("user.password.changed", event.UserID, event.ChangedAt, map[string]any{
		"sessions_revoked": event.SessionsRevoked,
		"metadata":         event.Metadata,
	})
	return nil
}

// PublishEmailChanged logs user.email.changed events.
func (p *StubPublisher) PublishEmailChanged(_ context.Context, event domain.EmailChangedEvent) error {
	p.logEvent("user.email.changed", event.UserID, event.ChangedAt, map[string]any{
		"old_email": event.OldEmail,
		"new_email": event.NewEmail,
	})
	return nil
}

// PublishNewConnection logs user.new_connection events.
func (p *StubPublisher) PublishNewConnection(_ context.Context, event domain.NewConnectionEvent) error {
	p.logEvent("user.new_connection", event.UserID, event.DetectedAt, map[string]any{
		"ip_address": event.IPAddress,
	})
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
