package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/repository"
)

// userMutableColumns whitelists the columns UpdateField may touch.
var userMutableColumns = map[string]struct{}{
	"email":         {},
	"password_hash": {},
	"avatar_url":    {},
	"is_admin":      {},
	"disabled":      {},
}

// UserRepository implements port.UserRepository backed by PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"avatar_url",
	"is_admin",
	"disabled",
	"created_at",
	"deleted_at",
}

// Create inserts a user record. A duplicate email maps to
// repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	sql, args, err := r.builder.Insert("authcore.users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.PasswordHash,
			user.AvatarURL,
			user.IsAdmin,
			user.Disabled,
			user.CreatedAt,
			user.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID fetches a user by identifier. Soft-deleted users are returned with
// DeletedAt set; callers decide how to treat them.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByEmail fetches a live user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.And{
		squirrel.Eq{"email": email},
		squirrel.Eq{"deleted_at": nil},
	})
}

func (r *UserRepository) getBy(ctx context.Context, pred squirrel.Sqlizer) (*domain.User, error) {
	sql, args, err := r.builder.Select(userColumns...).
		From("authcore.users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	row := r.exec.QueryRow(ctx, sql, args...)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.IsAdmin,
		&user.Disabled,
		&user.CreatedAt,
		&user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}

// UpdateField sets a single whitelisted column on the user row.
func (r *UserRepository) UpdateField(ctx context.Context, id string, field string, value any) error {
	if _, ok := userMutableColumns[field]; !ok {
		return fmt.Errorf("column %q is not mutable", field)
	}

	sql, args, err := r.builder.Update("authcore.users").
		Set(field, value).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update user %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a user record entirely.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	sql, args, err := r.builder.Delete("authcore.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDelete marks the user deleted without removing the row.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	sql, args, err := r.builder.Update("authcore.users").
		Set("deleted_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
