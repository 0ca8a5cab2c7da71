package domain

import "time"

// LinkType enumerates the sensitive account mutations a secure link can authorize.
type LinkType string

const (
	// LinkEmailChange authorizes changing the account email address.
	LinkEmailChange LinkType = "email_change"
	// LinkPasswordChange authorizes changing the account password.
	LinkPasswordChange LinkType = "password_change"
	// LinkEmailReset is the safety-net link mailed to the previous address after a change.
	LinkEmailReset LinkType = "email_reset"
)

// Valid reports whether the link type is one of the known values.
func (t LinkType) Valid() bool {
	switch t {
	case LinkEmailChange, LinkPasswordChange, LinkEmailReset:
		return true
	}
	return false
}

// Slug returns the URL path segment used when constructing confirmation links.
func (t LinkType) Slug() string {
	switch t {
	case LinkEmailChange:
		return "change-email"
	case LinkPasswordChange:
		return "change-password"
	case LinkEmailReset:
		return "reset-email"
	}
	return "unimplemented"
}

// SecureLink is a single-use, time-limited token authorizing one sensitive
// account mutation. The record identifier doubles as the bearer token that is
// embedded in the emailed confirmation URL.
type SecureLink struct {
	ID        string
	UserID    string
	Type      LinkType
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the link has lapsed at the supplied moment.
func (l SecureLink) IsExpired(at time.Time) bool {
	return !l.ExpiresAt.After(at)
}
