package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionRevoked publishes session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		Reason    string    `json:"reason"`
		RevokedAt time.Time `json:"revoked_at"`
		IPAddress *string   `json:"ip_address,omitempty"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Reason:    event.Reason,
		RevokedAt: event.RevokedAt.UTC(),
		IPAddress: event.IPAddress,
	}

	return p.publish(ctx, event.EventID, "session.revoked", event.UserID, event.RevokedAt, payload)
}

// PublishPasswordChanged publishes user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID          string         `json:"user_id"`
		ChangedAt       time.Time      `json:"changed_at"`
		SessionsRevoked int            `json:"sessions_revoked"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		UserID:          event.UserID,
		ChangedAt:       event.ChangedAt.UTC(),
		SessionsRevoked: event.SessionsRevoked,
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, "user.password.changed", event.UserID, event.ChangedAt, payload)
}

// PublishEmailChanged publishes user.email.changed events.
func (p *EventPublisher) PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		OldEmail  string    `json:"old_email"`
		NewEmail  string    `json:"new_email"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		OldEmail:  event.OldEmail,
		NewEmail:  event.NewEmail,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.email.changed", event.UserID, event.ChangedAt, payload)
}

// PublishNewConnection publishes user.new_connection events.
func (p *EventPublisher) PublishNewConnection(ctx context.Context, event domain.NewConnectionEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		IPAddress  string    `json:"ip_address"`
		DetectedAt time.Time `json:"detected_at"`
	}{
		UserID:     event.UserID,
		IPAddress:  event.IPAddress,
		DetectedAt: event.DetectedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "user.new_connection", event.UserID, event.DetectedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
