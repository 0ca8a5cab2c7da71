package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/repository"
)

// LinkRepository implements port.LinkRepository backed by PostgreSQL. A
// unique index on (user_id, link_type) keeps at most one active link per
// type per user; Create upserts against it.
type LinkRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLinkRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewLinkRepository(exec pgExecutor) *LinkRepository {
	return &LinkRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var linkColumns = []string{
	"id",
	"user_id",
	"link_type",
	"created_at",
	"expires_at",
}

// Create stores a link, replacing any existing link for the same
// (user, type) pair.
func (r *LinkRepository) Create(ctx context.Context, link domain.SecureLink) error {
	sql, args, err := r.builder.Insert("authcore.secure_links").
		Columns(linkColumns...).
		Values(
			link.ID,
			link.UserID,
			string(link.Type),
			link.CreatedAt,
			link.ExpiresAt,
		).
		Suffix("ON CONFLICT (user_id, link_type) DO UPDATE SET id = EXCLUDED.id, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert link sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	return nil
}

// GetByID fetches a link by its bearer token.
func (r *LinkRepository) GetByID(ctx context.Context, token string) (*domain.SecureLink, error) {
	sql, args, err := r.builder.Select(linkColumns...).
		From("authcore.secure_links").
		Where(squirrel.Eq{"id": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select link sql: %w", err)
	}

	var (
		link     domain.SecureLink
		linkType string
	)
	row := r.exec.QueryRow(ctx, sql, args...)
	if err := row.Scan(
		&link.ID,
		&link.UserID,
		&linkType,
		&link.CreatedAt,
		&link.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select link: %w", err)
	}
	link.Type = domain.LinkType(linkType)

	return &link, nil
}

// Delete removes a link by token.
func (r *LinkRepository) Delete(ctx context.Context, token string) error {
	sql, args, err := r.builder.Delete("authcore.secure_links").
		Where(squirrel.Eq{"id": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete link sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteByUserAndType removes every link of the given type owned by the user.
func (r *LinkRepository) DeleteByUserAndType(ctx context.Context, userID string, linkType domain.LinkType) error {
	sql, args, err := r.builder.Delete("authcore.secure_links").
		Where(squirrel.Eq{"user_id": userID, "link_type": string(linkType)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete links sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}

	return nil
}
