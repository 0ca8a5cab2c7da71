package port

import (
	"context"
	"time"

	"github.com/linzell/authcore/internal/core/domain"
)

// SessionRepository deals with session storage. Lookups never return the
// plaintext secret; sessions are addressed by id or by secret hash.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	GetBySecretHash(ctx context.Context, secretHash string) (*domain.Session, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Session, error)
	UpdateExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}
