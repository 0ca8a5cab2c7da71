package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/security"
	"github.com/linzell/authcore/internal/repository"
)

type fakeUserRepository struct {
	users map[string]*domain.User

	createErr error
	updateErr error
}

func newFakeUserRepository(users ...domain.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[string]*domain.User)}
	for i := range users {
		userCopy := users[i]
		repo.users[userCopy.ID] = &userCopy
	}
	return repo
}

func (f *fakeUserRepository) Create(ctx context.Context, user domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	stored := user
	f.users[stored.ID] = &stored
	return nil
}

func (f *fakeUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (f *fakeUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepository) UpdateField(ctx context.Context, id string, field string, value any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch field {
	case "email":
		user.Email = value.(string)
	case "password_hash":
		user.PasswordHash = value.(string)
	case "avatar_url":
		url := value.(string)
		user.AvatarURL = &url
	}
	return nil
}

func (f *fakeUserRepository) Delete(ctx context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepository) SoftDelete(ctx context.Context, id string) error {
	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	user.DeletedAt = &now
	return nil
}

type fakeNotifier struct {
	sent    []port.Message
	sendErr error
	loadErr error
}

func (f *fakeNotifier) LoadTemplate(name string) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	switch name {
	case tplEmailChange, tplPasswordChange:
		return "<p>Hello ${{USER_NAME}}, confirm: ${{CHANGE_URL}}</p>", nil
	case tplEmailChanged:
		return "<p>Your email is now ${{NEW_MAIL}}. Undo: ${{RESET_URL}}</p>", nil
	case tplPasswordChanged:
		return "<p>Password changed. Undo: ${{RESET_URL}}</p>", nil
	case tplNewConnection:
		return "<p>Hello ${{USER_NAME}}, new connection from ${{IP}}</p>", nil
	}
	return "", errors.New("unknown template " + name)
}

func (f *fakeNotifier) BuildMessage(from, to, subject, contentType, body string) port.Message {
	return port.Message{From: from, To: to, Subject: subject, ContentType: contentType, Body: body}
}

func (f *fakeNotifier) Send(ctx context.Context, msg port.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeEventPublisher struct {
	revoked     []domain.SessionRevokedEvent
	passwords   []domain.PasswordChangedEvent
	emails      []domain.EmailChangedEvent
	connections []domain.NewConnectionEvent
	publishErr  error
}

func (f *fakeEventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.revoked = append(f.revoked, event)
	return nil
}

func (f *fakeEventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.passwords = append(f.passwords, event)
	return nil
}

func (f *fakeEventPublisher) PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.emails = append(f.emails, event)
	return nil
}

func (f *fakeEventPublisher) PublishNewConnection(ctx context.Context, event domain.NewConnectionEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.connections = append(f.connections, event)
	return nil
}

type accountFixture struct {
	service  *AccountService
	users    *fakeUserRepository
	sessions *fakeSessionRepository
	links    *fakeLinkRepository
	notifier *fakeNotifier
	events   *fakeEventPublisher
}

func newAccountFixture(t *testing.T, users ...domain.User) *accountFixture {
	t.Helper()

	userRepo := newFakeUserRepository(users...)
	sessionRepo := newFakeSessionRepository()
	linkRepo := newFakeLinkRepository()
	notifier := &fakeNotifier{}
	events := &fakeEventPublisher{}

	sessions := NewSessionService(sessionRepo, 7*24*time.Hour, true, nil)
	links := NewLinkService(linkRepo, "https://app.example.com", nil)

	service := NewAccountService(AccountServiceDeps{
		Users:    userRepo,
		Sessions: sessions,
		Links:    links,
		Notifier: notifier,
		Events:   events,
	}, AccountServiceOptions{
		From: "no-reply@example.com",
	}, nil)

	return &accountFixture{
		service:  service,
		users:    userRepo,
		sessions: sessionRepo,
		links:    linkRepo,
		notifier: notifier,
		events:   events,
	}
}

func testUser(t *testing.T, id, email, password string) domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestLoginIssuesSession(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	session, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.Secret == "" {
		t.Error("expected plaintext secret on login")
	}
	if session.IPAddress == nil || *session.IPAddress != "10.0.0.1" {
		t.Error("session not bound to login IP")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	if _, err := fix.service.Login(context.Background(), "alice@example.com", "wrong-pass1!", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := fix.service.Login(context.Background(), "nobody@example.com", "1234abcd!", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	user := testUser(t, "user-1", "alice@example.com", "1234abcd!")
	user.Disabled = true
	fix := newAccountFixture(t, user)

	if _, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLoginSuspiciousReuseNotifiesAndRebinds(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	first, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1")
	if err != nil {
		t.Fatalf("first login returned error: %v", err)
	}

	second, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.2")
	if err != nil {
		t.Fatalf("second login returned error: %v", err)
	}

	if _, ok := fix.sessions.sessions[first.ID]; ok {
		t.Error("old session should be removed on suspicious reuse")
	}
	if second.IPAddress == nil || *second.IPAddress != "10.0.0.2" {
		t.Error("new session not bound to the new IP")
	}

	if len(fix.notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(fix.notifier.sent))
	}
	if !strings.Contains(fix.notifier.sent[0].Body, "10.0.0.2") {
		t.Error("new connection notification does not carry the new IP")
	}
	if len(fix.events.connections) != 1 {
		t.Errorf("expected 1 new connection event, got %d", len(fix.events.connections))
	}
}

func TestLoginSameIPReplacesSilently(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	first, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1")
	if err != nil {
		t.Fatalf("first login returned error: %v", err)
	}
	if _, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1"); err != nil {
		t.Fatalf("second login returned error: %v", err)
	}

	if _, ok := fix.sessions.sessions[first.ID]; ok {
		t.Error("old session should be replaced")
	}
	if len(fix.notifier.sent) != 0 {
		t.Errorf("same-IP login must not notify, got %d messages", len(fix.notifier.sent))
	}
}

func TestRegister(t *testing.T) {
	fix := newAccountFixture(t)

	user, err := fix.service.Register(context.Background(), "Bob@Example.com", "1234abcd!")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "1234abcd!" {
		t.Error("password not hashed")
	}

	if _, err := fix.service.Register(context.Background(), "bob@example.com", "1234abcd!"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	fix := newAccountFixture(t)

	if _, err := fix.service.Register(context.Background(), "bob@example.com", "123"); !errors.Is(err, security.ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestRequestEmailChange(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))
	session := &domain.Session{ID: "session-1", UserID: "user-1"}

	if err := fix.service.RequestEmailChange(context.Background(), session); err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}

	if len(fix.links.links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(fix.links.links))
	}
	var link *domain.SecureLink
	for _, l := range fix.links.links {
		link = l
	}
	if link.Type != domain.LinkEmailChange {
		t.Errorf("link type = %s, want %s", link.Type, domain.LinkEmailChange)
	}

	if len(fix.notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(fix.notifier.sent))
	}
	msg := fix.notifier.sent[0]
	if msg.To != "alice@example.com" {
		t.Errorf("notification sent to %s", msg.To)
	}
	wantURL := "https://app.example.com/change-email/" + link.ID
	if !strings.Contains(msg.Body, wantURL) {
		t.Errorf("notification body %q missing %q", msg.Body, wantURL)
	}
	if strings.Contains(msg.Body, "${{") {
		t.Errorf("unsubstituted placeholder in body %q", msg.Body)
	}
}

func TestRequestChangeUnknownUserIsSilent(t *testing.T) {
	fix := newAccountFixture(t)
	session := &domain.Session{ID: "session-1", UserID: "ghost"}

	if err := fix.service.RequestEmailChange(context.Background(), session); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if len(fix.notifier.sent) != 0 {
		t.Error("no notification expected for unknown user")
	}
	if len(fix.links.links) != 0 {
		t.Error("no link expected for unknown user")
	}
}

func TestConfirmEmailChange(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))
	session := &domain.Session{ID: "session-1", UserID: "user-1"}

	if err := fix.service.RequestEmailChange(context.Background(), session); err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}
	var token string
	for id := range fix.links.links {
		token = id
	}

	if err := fix.service.ConfirmEmailChange(context.Background(), token, "alice@new.example.com"); err != nil {
		t.Fatalf("ConfirmEmailChange returned error: %v", err)
	}

	user := fix.users.users["user-1"]
	if user.Email != "alice@new.example.com" {
		t.Errorf("email = %s, want alice@new.example.com", user.Email)
	}

	// Consumed change link is gone; a reset-email safety link replaces it.
	if _, ok := fix.links.links[token]; ok {
		t.Error("consumed link survived")
	}
	var reset *domain.SecureLink
	for _, l := range fix.links.links {
		if l.Type == domain.LinkEmailReset {
			reset = l
		}
	}
	if reset == nil {
		t.Fatal("expected a reset-email safety link")
	}

	// Safety notification goes to the old address.
	last := fix.notifier.sent[len(fix.notifier.sent)-1]
	if last.To != "alice@example.com" {
		t.Errorf("safety notification sent to %s, want old address", last.To)
	}
	if !strings.Contains(last.Body, "alice@new.example.com") {
		t.Error("safety notification missing the new address")
	}
	if !strings.Contains(last.Body, "https://app.example.com/reset-email/"+reset.ID) {
		t.Error("safety notification missing the reset URL")
	}

	if len(fix.events.emails) != 1 {
		t.Errorf("expected 1 email changed event, got %d", len(fix.events.emails))
	}
}

func TestConfirmEmailChangeTakenEmail(t *testing.T) {
	fix := newAccountFixture(t,
		testUser(t, "user-1", "alice@example.com", "1234abcd!"),
		testUser(t, "user-2", "bob@example.com", "1234abcd!"),
	)
	session := &domain.Session{ID: "session-1", UserID: "user-1"}

	if err := fix.service.RequestEmailChange(context.Background(), session); err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}
	var token string
	for id := range fix.links.links {
		token = id
	}

	if err := fix.service.ConfirmEmailChange(context.Background(), token, "bob@example.com"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if fix.users.users["user-1"].Email != "alice@example.com" {
		t.Error("email changed despite rejection")
	}
}

func TestConfirmEmailChangeExpiredLink(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fix.links.links["token-1"] = &domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkEmailChange,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}
	fix.service.WithClock(fixedClock(created.Add(25 * time.Hour)))

	if err := fix.service.ConfirmEmailChange(context.Background(), "token-1", "new@example.com"); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
	if fix.users.users["user-1"].Email != "alice@example.com" {
		t.Error("email changed despite expired link")
	}
}

func TestConfirmEmailChangeWrongLinkType(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))
	fix.links.links["token-1"] = &domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkPasswordChange,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	if err := fix.service.ConfirmEmailChange(context.Background(), "token-1", "new@example.com"); !errors.Is(err, ErrLinkWrongType) {
		t.Fatalf("expected ErrLinkWrongType, got %v", err)
	}
}

func TestConfirmPasswordChange(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	// Two live sessions that must both disappear.
	if _, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1"); err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	fix.sessions.sessions["stray"] = &domain.Session{ID: "stray", UserID: "user-1"}

	fix.links.links["token-1"] = &domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkPasswordChange,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	oldHash := fix.users.users["user-1"].PasswordHash
	if err := fix.service.ConfirmPasswordChange(context.Background(), "token-1", "1234abcd!", "new-pass9!x"); err != nil {
		t.Fatalf("ConfirmPasswordChange returned error: %v", err)
	}

	if fix.users.users["user-1"].PasswordHash == oldHash {
		t.Error("password hash unchanged")
	}
	for id, session := range fix.sessions.sessions {
		if session.UserID == "user-1" {
			t.Errorf("session %s survived password change", id)
		}
	}

	if len(fix.events.passwords) != 1 {
		t.Fatalf("expected 1 password changed event, got %d", len(fix.events.passwords))
	}
	if fix.events.passwords[0].SessionsRevoked != 2 {
		t.Errorf("sessions revoked = %d, want 2", fix.events.passwords[0].SessionsRevoked)
	}

	// Safety notification carries a reset link.
	last := fix.notifier.sent[len(fix.notifier.sent)-1]
	if !strings.Contains(last.Body, "https://app.example.com/reset-email/") {
		t.Error("safety notification missing the reset URL")
	}
}

func TestConfirmPasswordChangeWrongCurrent(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))
	fix.links.links["token-1"] = &domain.SecureLink{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      domain.LinkPasswordChange,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	oldHash := fix.users.users["user-1"].PasswordHash
	if err := fix.service.ConfirmPasswordChange(context.Background(), "token-1", "wrong-pass1!", "new-pass9!x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if fix.users.users["user-1"].PasswordHash != oldHash {
		t.Error("password changed despite wrong current password")
	}
	// The link must stay consumable; nothing was mutated.
	if _, ok := fix.links.links["token-1"]; !ok {
		t.Error("link consumed before mutation")
	}
}

func TestLogoutPublishesRevocation(t *testing.T) {
	fix := newAccountFixture(t, testUser(t, "user-1", "alice@example.com", "1234abcd!"))

	session, err := fix.service.Login(context.Background(), "alice@example.com", "1234abcd!", "10.0.0.1")
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if err := fix.service.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, ok := fix.sessions.sessions[session.ID]; ok {
		t.Error("session survived logout")
	}
	if len(fix.events.revoked) != 1 {
		t.Fatalf("expected 1 revocation event, got %d", len(fix.events.revoked))
	}
	if fix.events.revoked[0].Reason != "user_logout" {
		t.Errorf("revocation reason = %s", fix.events.revoked[0].Reason)
	}

	// Logging out twice is fine.
	if err := fix.service.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}
}
