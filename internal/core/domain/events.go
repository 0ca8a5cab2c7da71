package domain

import "time"

// SessionRevokedEvent is published when a session is deleted ahead of expiry.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	Reason    string
	RevokedAt time.Time
	IPAddress *string
}

// PasswordChangedEvent is published after a password mutation commits.
type PasswordChangedEvent struct {
	EventID         string
	UserID          string
	ChangedAt       time.Time
	SessionsRevoked int
	Metadata        map[string]any
}

// EmailChangedEvent is published after an email mutation commits.
type EmailChangedEvent struct {
	EventID   string
	UserID    string
	OldEmail  string
	NewEmail  string
	ChangedAt time.Time
}

// NewConnectionEvent is published when a login arrives from an IP that does
// not match the user's existing session.
type NewConnectionEvent struct {
	EventID    string
	UserID     string
	IPAddress  string
	DetectedAt time.Time
}
