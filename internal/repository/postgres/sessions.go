package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/repository"
)

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
// The plaintext session secret never reaches this layer; only the hash is
// written and queried.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var sessionColumns = []string{
	"id",
	"user_id",
	"secret_hash",
	"ip_address",
	"is_admin",
	"created_at",
	"expires_at",
}

// Create inserts a session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Insert("authcore.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.SecretHash,
			session.IPAddress,
			session.IsAdmin,
			session.CreatedAt,
			session.ExpiresAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID fetches a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	return r.getBy(ctx, squirrel.Eq{"id": sessionID})
}

// GetBySecretHash fetches a session by the hash of its secret.
func (r *SessionRepository) GetBySecretHash(ctx context.Context, secretHash string) (*domain.Session, error) {
	return r.getBy(ctx, squirrel.Eq{"secret_hash": secretHash})
}

// GetByUserID fetches the most recent session owned by the user.
func (r *SessionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Session, error) {
	return r.getBy(ctx, squirrel.Eq{"user_id": userID})
}

func (r *SessionRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Session, error) {
	sql, args, err := r.builder.Select(sessionColumns...).
		From("authcore.sessions").
		Where(pred).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var session domain.Session
	row := r.exec.QueryRow(ctx, sql, args...)
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.SecretHash,
		&session.IPAddress,
		&session.IsAdmin,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	return &session, nil
}

// UpdateExpiry moves the session expiry to the supplied moment.
func (r *SessionRepository) UpdateExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error {
	sql, args, err := r.builder.Update("authcore.sessions").
		Set("expires_at", expiresAt).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update session expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a session record.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	sql, args, err := r.builder.Delete("authcore.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteAllForUser removes every session owned by the user and reports how
// many were dropped.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	sql, args, err := r.builder.Delete("authcore.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for user: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
