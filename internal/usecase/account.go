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

var (
	// ErrInvalidCredentials indicates the email/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the account exists but may not log in.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailTaken indicates the requested email already belongs to an account.
	ErrEmailTaken = errors.New("email already taken")
	// ErrLinkWrongType indicates the presented link does not authorize this mutation.
	ErrLinkWrongType = errors.New("link does not authorize this operation")
)

// Template file names looked up through the notifier.
const (
	tplEmailChange     = "email_change.html"
	tplEmailChanged    = "email_changed.html"
	tplPasswordChange  = "password_change.html"
	tplPasswordChanged = "password_changed.html"
	tplNewConnection   = "new_connection_detected.html"
)

// AccountService orchestrates account mutations: login and logout, secure
// link issuance for email and password changes, and the confirmations that
// apply them. Notification failures after a committed mutation are logged
// and swallowed; the mutation already happened and must not be retried.
type AccountService struct {
	users     port.UserRepository
	sessions  *SessionService
	links     *LinkService
	notifier  port.Notifier
	events    port.EventPublisher
	from      string
	changeTTL time.Duration
	resetTTL  time.Duration
	minScore  int
	logger    *zap.Logger
	now       func() time.Time
}

// AccountServiceDeps bundles the collaborators of AccountService.
type AccountServiceDeps struct {
	Users    port.UserRepository
	Sessions *SessionService
	Links    *LinkService
	Notifier port.Notifier
	Events   port.EventPublisher
}

// AccountServiceOptions carries the tunables of AccountService.
type AccountServiceOptions struct {
	From             string
	ChangeLinkTTL    time.Duration
	ResetLinkTTL     time.Duration
	MinStrengthScore int
}

// NewAccountService constructs an AccountService.
func NewAccountService(deps AccountServiceDeps, opts AccountServiceOptions, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ChangeLinkTTL <= 0 {
		opts.ChangeLinkTTL = DefaultChangeLinkTTL
	}
	if opts.ResetLinkTTL <= 0 {
		opts.ResetLinkTTL = DefaultResetLinkTTL
	}
	service := &AccountService{
		users:     deps.Users,
		sessions:  deps.Sessions,
		links:     deps.Links,
		notifier:  deps.Notifier,
		events:    deps.Events,
		from:      opts.From,
		changeTTL: opts.ChangeLinkTTL,
		resetTTL:  opts.ResetLinkTTL,
		minScore:  opts.MinStrengthScore,
		logger:    log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
		if s.sessions != nil {
			s.sessions.WithClock(clock)
		}
		if s.links != nil {
			s.links.WithClock(clock)
		}
	}
}

// Register creates a new account after policy-validating the password.
func (s *AccountService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}

	if err := security.ValidatePasswordStrength(password, s.minScore, email); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.WithContext(ctx).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(email)))

	return &user, nil
}

// Login authenticates the email/password pair and issues a session bound to
// the caller's address. A live session on a different address is treated as a
// suspicious reuse: the owner is notified, the old session is dropped and a
// fresh one is bound to the new address.
func (s *AccountService) Login(ctx context.Context, email, password, ip string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := security.ValidatePassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.users == nil || s.sessions == nil {
		return nil, fmt.Errorf("account service not fully configured")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user.Disabled || user.DeletedAt != nil {
		return nil, ErrAccountDisabled
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logger.WithContext(ctx).Warn("login failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("ip", logger.MaskIP(ip)))
		return nil, ErrInvalidCredentials
	}

	if existing, err := s.sessions.sessions.GetByUserID(ctx, user.ID); err == nil {
		if !existing.BoundTo(ip) {
			s.notifyNewConnection(ctx, user, ip)
		}
		if err := s.sessions.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("replace session: %w", err)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get session by user: %w", err)
	}

	return s.sessions.Create(ctx, user.ID, ip, user.IsAdmin)
}

// Logout drops the session. Missing sessions are treated as already logged out.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	if s.sessions == nil {
		return fmt.Errorf("session service not configured")
	}

	session, err := s.sessions.sessions.GetByID(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("get session: %w", err)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	if session != nil {
		s.publishSessionRevoked(ctx, session, "user_logout")
	}

	return nil
}

// Renew extends the session lifetime.
func (s *AccountService) Renew(ctx context.Context, sessionID string) (*domain.Session, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("session service not configured")
	}
	return s.sessions.Renew(ctx, sessionID)
}

// RequestEmailChange issues an email-change link for the session owner and
// mails the confirmation URL to the current address.
func (s *AccountService) RequestEmailChange(ctx context.Context, session *domain.Session) error {
	return s.requestChange(ctx, session, domain.LinkEmailChange, tplEmailChange, "Confirm your email change")
}

// RequestPasswordChange issues a password-change link for the session owner.
func (s *AccountService) RequestPasswordChange(ctx context.Context, session *domain.Session) error {
	return s.requestChange(ctx, session, domain.LinkPasswordChange, tplPasswordChange, "Confirm your password change")
}

func (s *AccountService) requestChange(ctx context.Context, session *domain.Session, linkType domain.LinkType, template, subject string) error {
	if session == nil {
		return ErrSessionNotFound
	}
	if s.users == nil || s.links == nil || s.notifier == nil {
		return fmt.Errorf("account service not fully configured")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Do not reveal whether the account exists.
			logger.WithContext(ctx).Debug("change requested for unknown user",
				zap.String("user_id", session.UserID))
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	link, err := s.links.CreateFromUser(ctx, user.ID, s.changeTTL, linkType)
	if err != nil {
		return err
	}

	body, err := s.renderTemplate(template, map[string]string{
		"USER_NAME":  user.Email,
		"CHANGE_URL": s.links.ConstructLink(*link),
	})
	if err != nil {
		return err
	}

	msg := s.notifier.BuildMessage(s.from, user.Email, subject, "text/html", body)
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", linkType, err)
	}

	return nil
}

// ConfirmEmailChange redeems an email-change (or reset-email) link, applies
// the new address and mails a safety-net reset link to the previous one.
func (s *AccountService) ConfirmEmailChange(ctx context.Context, token, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return fmt.Errorf("valid email is required")
	}
	if s.users == nil || s.links == nil {
		return fmt.Errorf("account service not fully configured")
	}

	link, err := s.links.ValidateAndFetch(ctx, token)
	if err != nil {
		return err
	}
	if link.Type != domain.LinkEmailChange && link.Type != domain.LinkEmailReset {
		return ErrLinkWrongType
	}

	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if other, err := s.users.GetByEmail(ctx, newEmail); err == nil && other.ID != user.ID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("get user by email: %w", err)
	}

	oldEmail := user.Email
	if err := s.users.UpdateField(ctx, user.ID, "email", newEmail); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update email: %w", err)
	}

	// The mutation is committed. Everything below is best-effort.
	if err := s.links.DeleteByUserAndType(ctx, user.ID, link.Type); err != nil {
		s.logger.Warn("delete consumed links failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	s.sendSafetyReset(ctx, user.ID, oldEmail, tplEmailChanged, "Your email address was changed", map[string]string{
		"NEW_MAIL": newEmail,
	})

	if s.events != nil {
		event := domain.EmailChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			OldEmail:  oldEmail,
			NewEmail:  newEmail,
			ChangedAt: s.now(),
		}
		if err := s.events.PublishEmailChanged(ctx, event); err != nil {
			s.logger.Warn("publish email changed failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}

	logger.WithContext(ctx).Info("email changed",
		zap.String("user_id", user.ID),
		zap.String("old_email", logger.MaskEmail(oldEmail)),
		zap.String("new_email", logger.MaskEmail(newEmail)))

	return nil
}

// ConfirmPasswordChange redeems a password-change link, applies the new
// password, revokes every session of the user and mails a safety-net reset
// link to the account address.
func (s *AccountService) ConfirmPasswordChange(ctx context.Context, token, currentPassword, newPassword string) error {
	if s.users == nil || s.links == nil || s.sessions == nil {
		return fmt.Errorf("account service not fully configured")
	}

	link, err := s.links.ValidateAndFetch(ctx, token)
	if err != nil {
		return err
	}
	if link.Type != domain.LinkPasswordChange {
		return ErrLinkWrongType
	}

	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := security.ValidatePasswordStrength(newPassword, s.minScore, user.Email); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdateField(ctx, user.ID, "password_hash", hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// The mutation is committed. Everything below is best-effort.
	if err := s.links.DeleteByUserAndType(ctx, user.ID, domain.LinkPasswordChange); err != nil {
		s.logger.Warn("delete consumed links failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	revoked, err := s.sessions.DestroyAll(ctx, user.ID)
	if err != nil {
		s.logger.Warn("destroy sessions after password change failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	s.sendSafetyReset(ctx, user.ID, user.Email, tplPasswordChanged, "Your password was changed", nil)

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:         uuid.NewString(),
			UserID:          user.ID,
			ChangedAt:       s.now(),
			SessionsRevoked: revoked,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}

	logger.WithContext(ctx).Info("password changed",
		zap.String("user_id", user.ID),
		zap.Int("sessions_revoked", revoked))

	return nil
}

// sendSafetyReset issues the long-lived reset-email link mailed after a
// sensitive change so the previous owner can reclaim the account.
func (s *AccountService) sendSafetyReset(ctx context.Context, userID, to, template, subject string, extra map[string]string) {
	if s.links == nil || s.notifier == nil {
		return
	}

	link, err := s.links.CreateFromUser(ctx, userID, s.resetTTL, domain.LinkEmailReset)
	if err != nil {
		s.logger.Warn("create safety reset link failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	subs := map[string]string{
		"RESET_URL": s.links.ConstructLink(*link),
	}
	for k, v := range extra {
		subs[k] = v
	}

	body, err := s.renderTemplate(template, subs)
	if err != nil {
		s.logger.Warn("render safety reset template failed",
			zap.String("template", template),
			zap.Error(err))
		return
	}

	msg := s.notifier.BuildMessage(s.from, to, subject, "text/html", body)
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("send safety reset failed",
			zap.String("user_id", userID),
			zap.String("to", logger.MaskEmail(to)),
			zap.Error(err))
	}
}

// notifyNewConnection mails the account owner about a login from an address
// that does not match the live session. Failures here never block the login.
func (s *AccountService) notifyNewConnection(ctx context.Context, user *domain.User, ip string) {
	logger.WithContext(ctx).Warn("new connection detected",
		zap.String("user_id", user.ID),
		zap.String("ip", logger.MaskIP(ip)))

	if s.notifier != nil {
		body, err := s.renderTemplate(tplNewConnection, map[string]string{
			"USER_NAME": user.Email,
			"IP":        ip,
		})
		if err != nil {
			s.logger.Warn("render new connection template failed", zap.Error(err))
		} else {
			msg := s.notifier.BuildMessage(s.from, user.Email, "New connection detected", "text/html", body)
			if err := s.notifier.Send(ctx, msg); err != nil {
				s.logger.Warn("send new connection notification failed",
					zap.String("user_id", user.ID),
					zap.Error(err))
			}
		}
	}

	if s.events != nil {
		event := domain.NewConnectionEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			IPAddress:  ip,
			DetectedAt: s.now(),
		}
		if err := s.events.PublishNewConnection(ctx, event); err != nil {
			s.logger.Warn("publish new connection failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}
}

func (s *AccountService) publishSessionRevoked(ctx context.Context, session *domain.Session, reason string) {
	if s.events == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		UserID:    session.UserID,
		Reason:    reason,
		RevokedAt: s.now(),
		IPAddress: session.IPAddress,
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

// renderTemplate loads a template through the notifier and substitutes
// ${{TOKEN}} placeholders.
func (s *AccountService) renderTemplate(name string, subs map[string]string) (string, error) {
	tpl, err := s.notifier.LoadTemplate(name)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", name, err)
	}
	for key, value := range subs {
		tpl = strings.ReplaceAll(tpl, "${{"+key+"}}", value)
	}
	return tpl, nil
}
