package port

import (
	"context"

	"github.com/linzell/authcore/internal/core/domain"
)

// LinkRepository deals with secure-link storage. Create replaces any existing
// link for the same (user, type) pair so that at most one link of a given type
// is active per user.
type LinkRepository interface {
	Create(ctx context.Context, link domain.SecureLink) error
	GetByID(ctx context.Context, token string) (*domain.SecureLink, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserAndType(ctx context.Context, userID string, linkType domain.LinkType) error
}
