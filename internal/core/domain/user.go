package domain

import "time"

// User is the account record owned by the storage layer. PasswordHash is the
// encoded output of the pluggable hashing capability, never the raw password.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	AvatarURL    *string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// ProfileSnapshot is the client-facing projection of a user streamed by the
// live profile feed. It carries no credential material.
type ProfileSnapshot struct {
	UserID    string
	Email     string
	AvatarURL *string
	IsAdmin   bool
	UpdatedAt time.Time
}

// Snapshot projects the user into its streamable form.
func (u User) Snapshot(at time.Time) ProfileSnapshot {
	return ProfileSnapshot{
		UserID:    u.ID,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		IsAdmin:   u.IsAdmin,
		UpdatedAt: at,
	}
}

// ChangeOp identifies the kind of mutation observed on a watched collection.
type ChangeOp string

const (
	// ChangeCreate signals a new record.
	ChangeCreate ChangeOp = "create"
	// ChangeUpdate signals a field mutation.
	ChangeUpdate ChangeOp = "update"
	// ChangeDelete signals record removal.
	ChangeDelete ChangeOp = "delete"
)

// ChangeEvent is one entry in a storage change-notification stream.
type ChangeEvent struct {
	Op       ChangeOp
	RecordID string
	At       time.Time
}
