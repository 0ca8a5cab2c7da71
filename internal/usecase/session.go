package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/logger"
	"github.com/linzell/authcore/internal/infra/security"
	"github.com/linzell/authcore/internal/repository"
)

// DefaultSessionTTL is the session lifetime applied when no TTL is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

var (
	// ErrKeyGeneration indicates the session secret could not be generated.
	ErrKeyGeneration = errors.New("session key generation failed")
	// ErrSessionNotCreated indicates the session record could not be stored.
	ErrSessionNotCreated = errors.New("session not created")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session lapsed; it is treated as absent.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionIPMismatch indicates the caller address differs from the one
	// the session is bound to. The caller must re-authenticate.
	ErrSessionIPMismatch = errors.New("session ip mismatch")
	// ErrSessionRenewal indicates the session expiry could not be extended.
	ErrSessionRenewal = errors.New("session renewal failed")
	// ErrSessionDeletion indicates the session could not be removed.
	ErrSessionDeletion = errors.New("session deletion failed")
	// ErrSessionDestroyAll indicates the bulk per-user removal failed.
	ErrSessionDestroyAll = errors.New("session destroy all failed")
)

// SessionService owns the session lifecycle: opaque secret issuance,
// validation with IP binding, sliding renewal and revocation.
type SessionService struct {
	sessions port.SessionRepository
	logger   *zap.Logger
	ttl      time.Duration
	bindIP   bool
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, ttl time.Duration, bindIP bool, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	service := &SessionService{
		sessions: sessions,
		logger:   log,
		ttl:      ttl,
		bindIP:   bindIP,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// TTL exposes the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a fresh session for the user. The returned session carries
// the plaintext secret exactly once; storage only ever sees its hash.
func (s *SessionService) Create(ctx context.Context, userID, ip string, isAdmin bool) (*domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	secret, err := security.GenerateSecureToken(32)
	if err != nil {
		s.logger.Error("generate session secret failed", zap.Error(err))
		return nil, ErrKeyGeneration
	}

	now := s.now()
	session := domain.Session{
		ID:         uuid.NewString(),
		Secret:     secret,
		SecretHash: security.HashToken(secret),
		UserID:     userID,
		IsAdmin:    isAdmin,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("store session failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, ErrSessionNotCreated
	}

	logger.WithContext(ctx).Info("session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("ip", logger.MaskIP(ip)))

	return &session, nil
}

// Validate resolves the session behind a plaintext secret and checks it
// against the caller's address. Expired sessions are removed best-effort and
// reported as expired; an address mismatch leaves the session untouched.
func (s *SessionService) Validate(ctx context.Context, secret, callerIP string) (*domain.Session, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSessionNotFound
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	session, err := s.sessions.GetBySecretHash(ctx, security.HashToken(secret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by secret: %w", err)
	}

	if session.IsExpired(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired session failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	if s.bindIP && !session.BoundTo(callerIP) {
		logger.WithContext(ctx).Warn("session ip mismatch",
			zap.String("session_id", session.ID),
			zap.String("caller_ip", logger.MaskIP(callerIP)))
		return nil, ErrSessionIPMismatch
	}

	return session, nil
}

// Renew slides the session expiry forward to now + TTL. Renewal never
// shortens a lifetime that already extends beyond the new expiry.
func (s *SessionService) Renew(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := s.now()
	if session.IsExpired(now) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("delete expired session failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	expiresAt := now.Add(s.ttl)
	if !expiresAt.After(session.ExpiresAt) {
		return session, nil
	}

	if err := s.sessions.UpdateExpiry(ctx, session.ID, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("update session expiry failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, ErrSessionRenewal
	}

	session.ExpiresAt = expiresAt
	return session, nil
}

// Delete removes a session. Deleting a session that no longer exists is not
// an error.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		s.logger.Error("delete session failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return ErrSessionDeletion
	}

	return nil
}

// DestroyAll removes every session owned by the user and returns the number
// of sessions removed.
func (s *SessionService) DestroyAll(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id is required")
	}
	if s.sessions == nil {
		return 0, fmt.Errorf("session repository not configured")
	}

	count, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("destroy all sessions failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return 0, ErrSessionDestroyAll
	}

	if count > 0 {
		logger.WithContext(ctx).Info("sessions destroyed",
			zap.String("user_id", userID),
			zap.Int("count", count))
	}

	return count, nil
}
