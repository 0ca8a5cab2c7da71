package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/security"
	"github.com/linzell/authcore/internal/repository"
)

const (
	// DefaultChangeLinkTTL bounds links that authorize a pending change.
	DefaultChangeLinkTTL = 24 * time.Hour
	// DefaultResetLinkTTL bounds the safety-net reset links mailed after a change.
	DefaultResetLinkTTL = 48 * time.Hour
)

var (
	// ErrLinkNotCreated indicates the link record could not be stored.
	ErrLinkNotCreated = errors.New("link not created")
	// ErrLinkNotFound indicates the token resolves to no active link.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkExpired indicates the link lapsed; it behaves as absent.
	ErrLinkExpired = errors.New("link expired")
	// ErrLinkInvalidType indicates an unknown link type was requested.
	ErrLinkInvalidType = errors.New("invalid link type")
)

// LinkService issues and redeems single-use secure links. The record id
// doubles as the bearer token embedded in emailed confirmation URLs.
type LinkService struct {
	links    port.LinkRepository
	frontURL string
	logger   *zap.Logger
	now      func() time.Time
}

// NewLinkService constructs a LinkService. frontURL is the public base the
// link paths are joined onto.
func NewLinkService(links port.LinkRepository, frontURL string, log *zap.Logger) *LinkService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &LinkService{
		links:    links,
		frontURL: strings.TrimRight(frontURL, "/"),
		logger:   log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LinkService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateFromUser issues a link of the given type for the user, replacing any
// existing link of the same type so at most one is active per (user, type).
func (s *LinkService) CreateFromUser(ctx context.Context, userID string, expiry time.Duration, linkType domain.LinkType) (*domain.SecureLink, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if !linkType.Valid() {
		return nil, ErrLinkInvalidType
	}
	if s.links == nil {
		return nil, fmt.Errorf("link repository not configured")
	}
	if expiry <= 0 {
		expiry = DefaultChangeLinkTTL
	}

	token, err := security.GenerateSecureToken(32)
	if err != nil {
		s.logger.Error("generate link token failed", zap.Error(err))
		return nil, ErrLinkNotCreated
	}

	if err := s.links.DeleteByUserAndType(ctx, userID, linkType); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("delete previous links: %w", err)
	}

	now := s.now()
	link := domain.SecureLink{
		ID:        token,
		UserID:    userID,
		Type:      linkType,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}

	if err := s.links.Create(ctx, link); err != nil {
		s.logger.Error("store link failed",
			zap.String("user_id", userID),
			zap.String("link_type", string(linkType)),
			zap.Error(err))
		return nil, ErrLinkNotCreated
	}

	return &link, nil
}

// ValidateAndFetch resolves a bearer token to its active link. Expired links
// are removed best-effort and reported as expired.
func (s *LinkService) ValidateAndFetch(ctx context.Context, token string) (*domain.SecureLink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrLinkNotFound
	}
	if s.links == nil {
		return nil, fmt.Errorf("link repository not configured")
	}

	link, err := s.links.GetByID(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}

	if link.IsExpired(s.now()) {
		if err := s.links.Delete(ctx, link.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired link failed",
				zap.String("link_type", string(link.Type)),
				zap.Error(err))
		}
		return nil, ErrLinkExpired
	}

	return link, nil
}

// Delete consumes a link. Missing links are not an error.
func (s *LinkService) Delete(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if s.links == nil {
		return fmt.Errorf("link repository not configured")
	}

	if err := s.links.Delete(ctx, token); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// DeleteByUserAndType removes every link of the given type owned by the user.
func (s *LinkService) DeleteByUserAndType(ctx context.Context, userID string, linkType domain.LinkType) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if s.links == nil {
		return fmt.Errorf("link repository not configured")
	}

	if err := s.links.DeleteByUserAndType(ctx, userID, linkType); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete links: %w", err)
	}
	return nil
}

// ConstructLink builds the public confirmation URL for a link.
func (s *LinkService) ConstructLink(link domain.SecureLink) string {
	return fmt.Sprintf("%s/%s/%s", s.frontURL, link.Type.Slug(), link.ID)
}
