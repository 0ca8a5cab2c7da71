package port

import (
	"context"

	"github.com/linzell/authcore/internal/core/domain"
)

// EventPublisher pushes security events to downstream consumers. Publish
// failures must never fail the owning flow; callers log and continue.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error
	PublishNewConnection(ctx context.Context, event domain.NewConnectionEvent) error
}
