package port

import (
	"context"

	"github.com/linzell/authcore/internal/core/domain"
)

// UserRepository exposes persistence behavior for users. UpdateField covers
// the single-field mutations used by the change-confirmation flows; SoftDelete
// marks the record deleted without removing it.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateField(ctx context.Context, id string, field string, value any) error
	Delete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

// UserWatcher subscribes to change notifications for the users collection.
// The returned channel is closed when the subscription ends; Watch releases
// its underlying resources when ctx is cancelled.
type UserWatcher interface {
	Watch(ctx context.Context) (<-chan domain.ChangeEvent, error)
}
