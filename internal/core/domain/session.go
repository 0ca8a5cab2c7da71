package domain

import "time"

// Session represents a persisted login session bound to a user and optionally an IP address.
//
// Secret carries the plaintext session secret only on the instance returned by
// session creation; it is never stored and never populated on lookups. Storage
// keeps SecretHash only.
type Session struct {
	ID         string
	Secret     string
	SecretHash string
	UserID     string
	IPAddress  *string
	IsAdmin    bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the session has lapsed at the supplied moment.
func (s Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// BoundTo reports whether the session is bound to the supplied IP address.
// Sessions without a recorded IP match any caller.
func (s Session) BoundTo(ip string) bool {
	if s.IPAddress == nil || *s.IPAddress == "" {
		return true
	}
	return *s.IPAddress == ip
}
