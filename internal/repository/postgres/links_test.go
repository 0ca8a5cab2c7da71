package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/repository"
)

func TestLinkRepository_CreateUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLinkRepository(mock)

	createdAt := time.Now().UTC()
	link := domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkEmailChange,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO authcore\.secure_links .+ ON CONFLICT \(user_id, link_type\) DO UPDATE`).
		WithArgs(
			link.ID,
			link.UserID,
			"email_change",
			link.CreatedAt,
			link.ExpiresAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), link); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLinkRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLinkRepository(mock)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "link_type", "created_at", "expires_at",
	}).AddRow("token-1", "user-1", "password_change", createdAt, createdAt.Add(24*time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM authcore\.secure_links WHERE id = \$1`).
		WithArgs("token-1").
		WillReturnRows(rows)

	link, err := repo.GetByID(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if link.Type != domain.LinkPasswordChange {
		t.Errorf("link type = %s, want %s", link.Type, domain.LinkPasswordChange)
	}

	mock.ExpectQuery(`SELECT .+ FROM authcore\.secure_links`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "link_type", "created_at", "expires_at",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLinkRepository(mock)

	mock.ExpectExec(`DELETE FROM authcore\.secure_links WHERE id = \$1`).
		WithArgs("token-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Delete(context.Background(), "token-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	mock.ExpectExec(`DELETE FROM authcore\.secure_links`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepository_DeleteByUserAndType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLinkRepository(mock)

	mock.ExpectExec(`DELETE FROM authcore\.secure_links WHERE`).
		WithArgs("email_change", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	// No matching rows is fine; replacement happens on first issuance too.
	if err := repo.DeleteByUserAndType(context.Background(), "user-1", domain.LinkEmailChange); err != nil {
		t.Fatalf("DeleteByUserAndType returned error: %v", err)
	}
}
