package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linzell/authcore/internal/infra/security"
	"github.com/linzell/authcore/internal/transport/http/middleware"
	"github.com/linzell/authcore/internal/usecase"
)

// AuthHandler exposes endpoints for registration and session lifecycle.
type AuthHandler struct {
	accounts *usecase.AccountService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(accounts *usecase.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login godoc
// @Summary Authenticate and open a session
// @Description Verifies credentials and returns a fresh session secret bound to the caller's address.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body AuthLoginRequest true "Login request"
// @Success 200 {object} AuthLoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.accounts == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "authentication unavailable"))
		return
	}

	var req AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
		case errors.Is(err, usecase.ErrAccountDisabled):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account disabled"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		}
		return
	}

	c.JSON(http.StatusOK, AuthLoginResponse{
		Secret:  session.Secret,
		Session: newSessionSummary(*session),
	})
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account after validating the password against the policy.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegistrationRequest true "Registration request"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	if h.accounts == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration unavailable"))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var policyErr *security.PolicyError
		switch {
		case errors.Is(err, usecase.ErrEmailTaken):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "email already taken"))
		case errors.As(err, &policyErr):
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "registration failed"))
		}
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		User:    newUserSummary(*user),
		Message: "account created",
	})
}

// Logout godoc
// @Summary Close the current session
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Renew godoc
// @Summary Extend the current session
// @Description Pushes the session expiry forward; the expiry never moves backwards.
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} SessionRenewResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/renew [post]
func (h *AuthHandler) Renew(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	renewed, err := h.accounts.Renew(c.Request.Context(), session.ID)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusUnauthorized, Message: "session not found"},
			{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "session expired"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to renew session")
		return
	}

	c.JSON(http.StatusOK, SessionRenewResponse{Session: newSessionSummary(*renewed)})
}
