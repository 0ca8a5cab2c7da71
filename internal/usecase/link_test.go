package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/repository"
)

type fakeLinkRepository struct {
	links map[string]*domain.SecureLink

	createErr error
	getErr    error
	deleteErr error
}

func newFakeLinkRepository(links ...domain.SecureLink) *fakeLinkRepository {
	repo := &fakeLinkRepository{links: make(map[string]*domain.SecureLink)}
	for i := range links {
		linkCopy := links[i]
		repo.links[linkCopy.ID] = &linkCopy
	}
	return repo
}

func (f *fakeLinkRepository) Create(ctx context.Context, link domain.SecureLink) error {
	if f.createErr != nil {
		return f.createErr
	}
	stored := link
	f.links[stored.ID] = &stored
	return nil
}

func (f *fakeLinkRepository) GetByID(ctx context.Context, token string) (*domain.SecureLink, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	link, ok := f.links[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *link
	return &copy, nil
}

func (f *fakeLinkRepository) Delete(ctx context.Context, token string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.links[token]; !ok {
		return repository.ErrNotFound
	}
	delete(f.links, token)
	return nil
}

func (f *fakeLinkRepository) DeleteByUserAndType(ctx context.Context, userID string, linkType domain.LinkType) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, link := range f.links {
		if link.UserID == userID && link.Type == linkType {
			delete(f.links, id)
		}
	}
	return nil
}

func TestLinkCreateFromUser(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeLinkRepository()
	service := NewLinkService(repo, "https://app.example.com", nil)
	service.WithClock(fixedClock(now))

	link, err := service.CreateFromUser(context.Background(), "user-1", 24*time.Hour, domain.LinkEmailChange)
	if err != nil {
		t.Fatalf("CreateFromUser returned error: %v", err)
	}

	if link.ID == "" {
		t.Fatal("expected token as link id")
	}
	if !link.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("expires at = %v, want %v", link.ExpiresAt, now.Add(24*time.Hour))
	}
	if _, ok := repo.links[link.ID]; !ok {
		t.Error("link not stored")
	}
}

func TestLinkCreateReplacesSameType(t *testing.T) {
	repo := newFakeLinkRepository(domain.SecureLink{
		ID:        "old-token",
		UserID:    "user-1",
		Type:      domain.LinkEmailChange,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	service := NewLinkService(repo, "https://app.example.com", nil)

	link, err := service.CreateFromUser(context.Background(), "user-1", 24*time.Hour, domain.LinkEmailChange)
	if err != nil {
		t.Fatalf("CreateFromUser returned error: %v", err)
	}

	if _, ok := repo.links["old-token"]; ok {
		t.Error("previous link of the same type survived")
	}
	if len(repo.links) != 1 {
		t.Errorf("expected exactly one active link, got %d", len(repo.links))
	}
	if _, ok := repo.links[link.ID]; !ok {
		t.Error("fresh link missing")
	}
}

func TestLinkCreateInvalidType(t *testing.T) {
	service := NewLinkService(newFakeLinkRepository(), "https://app.example.com", nil)

	if _, err := service.CreateFromUser(context.Background(), "user-1", time.Hour, domain.LinkType("bogus")); !errors.Is(err, ErrLinkInvalidType) {
		t.Fatalf("expected ErrLinkInvalidType, got %v", err)
	}
}

func TestLinkValidateAndFetch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeLinkRepository(domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkPasswordChange,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	})
	service := NewLinkService(repo, "https://app.example.com", nil)
	service.WithClock(fixedClock(now.Add(23 * time.Hour)))

	link, err := service.ValidateAndFetch(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("ValidateAndFetch returned error: %v", err)
	}
	if link.UserID != "user-1" {
		t.Errorf("link user = %s, want user-1", link.UserID)
	}

	if _, err := service.ValidateAndFetch(context.Background(), "unknown"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestLinkValidateExpired(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeLinkRepository(domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkEmailChange,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	})
	service := NewLinkService(repo, "https://app.example.com", nil)
	service.WithClock(fixedClock(created.Add(25 * time.Hour)))

	if _, err := service.ValidateAndFetch(context.Background(), "token-1"); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}

	// Expired links behave as absent and are removed.
	if _, ok := repo.links["token-1"]; ok {
		t.Error("expired link not removed")
	}
}

func TestLinkConstructLink(t *testing.T) {
	service := NewLinkService(newFakeLinkRepository(), "https://app.example.com/", nil)

	tests := []struct {
		linkType domain.LinkType
		want     string
	}{
		{domain.LinkEmailChange, "https://app.example.com/change-email/token-1"},
		{domain.LinkPasswordChange, "https://app.example.com/change-password/token-1"},
		{domain.LinkEmailReset, "https://app.example.com/reset-email/token-1"},
	}

	for _, tt := range tests {
		got := service.ConstructLink(domain.SecureLink{ID: "token-1", Type: tt.linkType})
		if got != tt.want {
			t.Errorf("ConstructLink(%s) = %q, want %q", tt.linkType, got, tt.want)
		}
	}
}
