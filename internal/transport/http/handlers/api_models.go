package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linzell/authcore/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	IsAdmin   bool    `json:"is_admin"`
}

// SessionSummary provides a compact view of session context in login responses.
type SessionSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsAdmin   bool      `json:"is_admin"`
}

// AuthLoginRequest defines the payload for the login endpoint.
type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthLoginResponse describes the response returned for a successful login.
// Secret is the opaque bearer credential; it is shown exactly once.
type AuthLoginResponse struct {
	Secret  string         `json:"secret"`
	Session SessionSummary `json:"session"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegistrationResponse contains the created account.
type RegistrationResponse struct {
	User    UserSummary `json:"user"`
	Message string      `json:"message"`
}

// SessionRenewResponse carries the extended session expiry.
type SessionRenewResponse struct {
	Session SessionSummary `json:"session"`
}

// EmailChangeConfirmRequest carries the secure-link token and the new address.
type EmailChangeConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	NewEmail string `json:"new_email" binding:"required,email"`
}

// PasswordChangeConfirmRequest carries the secure-link token plus the current
// and replacement passwords.
type PasswordChangeConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ProfilePayload is the snapshot shape emitted on the profile event stream.
type ProfilePayload struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to a summary suitable for API responses.
func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		IsAdmin:   user.IsAdmin,
	}
}

// newSessionSummary converts a domain session to its API projection.
func newSessionSummary(session domain.Session) SessionSummary {
	return SessionSummary{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		IsAdmin:   session.IsAdmin,
	}
}

// newProfilePayload converts a snapshot to its streamed projection.
func newProfilePayload(snapshot domain.ProfileSnapshot) ProfilePayload {
	return ProfilePayload{
		UserID:    snapshot.UserID,
		Email:     snapshot.Email,
		AvatarURL: snapshot.AvatarURL,
		IsAdmin:   snapshot.IsAdmin,
		UpdatedAt: snapshot.UpdatedAt,
	}
}
