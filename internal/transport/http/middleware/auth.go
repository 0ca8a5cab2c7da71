package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linzell/authcore/internal/core/domain"
	"github.com/linzell/authcore/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header against stored sessions.
// The bearer token is the opaque session secret issued at login; validation
// also enforces the session's IP binding against the caller's address.
func RequireAuth(sessions *usecase.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <secret>'"))
			return
		}

		if !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: must start with 'Bearer'"))
			return
		}

		secret := strings.TrimSpace(parts[1])
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing session secret"))
			return
		}

		session, err := sessions.Validate(c.Request.Context(), secret, c.ClientIP())
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrSessionExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session expired"))
			case errors.Is(err, usecase.ErrSessionIPMismatch):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session not valid from this address"))
			case errors.Is(err, usecase.ErrSessionNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid session secret"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserIDKey, session.UserID)
		c.Set(SessionKey, session)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = session.UserID
		}

		c.Next()
	}
}

// RequireAdmin gates a route on the session's admin flag. It must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !session.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// GetSession retrieves the validated session from context (helper for handlers)
func GetSession(c *gin.Context) (*domain.Session, bool) {
	val, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}

	session, ok := val.(*domain.Session)
	if !ok || session == nil {
		return nil, false
	}

	return session, true
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
