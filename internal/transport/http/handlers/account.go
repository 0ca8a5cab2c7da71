package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linzell/authcore/internal/infra/security"
	"github.com/linzell/authcore/internal/transport/http/middleware"
	"github.com/linzell/authcore/internal/usecase"
)

// AccountHandler exposes the email and password change flows. Request
// endpoints require an authenticated session; confirm endpoints authorize via
// the emailed secure-link token instead.
type AccountHandler struct {
	accounts *usecase.AccountService
}

// NewAccountHandler constructs an account handler.
func NewAccountHandler(accounts *usecase.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// RequestEmailChange godoc
// @Summary Request an email change link
// @Description Mails a single-use confirmation link to the account's current address.
// @Tags Account
// @Security Bearer
// @Produce json
// @Success 202 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/account/email/request [post]
func (h *AccountHandler) RequestEmailChange(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.accounts.RequestEmailChange(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to send confirmation link"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "confirmation link sent"})
}

// RequestPasswordChange godoc
// @Summary Request a password change link
// @Description Mails a single-use confirmation link to the account's current address.
// @Tags Account
// @Security Bearer
// @Produce json
// @Success 202 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/account/password/request [post]
func (h *AccountHandler) RequestPasswordChange(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.accounts.RequestPasswordChange(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to send confirmation link"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "confirmation link sent"})
}

// ConfirmEmailChange godoc
// @Summary Confirm an email change
// @Description Applies the new address using the token from the emailed link. The link is consumed on success.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body EmailChangeConfirmRequest true "Email change confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/account/email/confirm [post]
func (h *AccountHandler) ConfirmEmailChange(c *gin.Context) {
	var req EmailChangeConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token and new_email are required"))
		return
	}

	err := h.accounts.ConfirmEmailChange(c.Request.Context(), req.Token, req.NewEmail)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrLinkNotFound, Status: http.StatusNotFound, Message: "link not found"},
			{Err: usecase.ErrLinkExpired, Status: http.StatusGone, Message: "link expired"},
			{Err: usecase.ErrLinkWrongType, Status: http.StatusNotFound, Message: "link not found"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already taken"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to change email")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email changed"})
}

// ConfirmPasswordChange godoc
// @Summary Confirm a password change
// @Description Applies the new password using the token from the emailed link. All sessions are revoked on success.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body PasswordChangeConfirmRequest true "Password change confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/account/password/confirm [post]
func (h *AccountHandler) ConfirmPasswordChange(c *gin.Context) {
	var req PasswordChangeConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token, current_password and new_password are required"))
		return
	}

	err := h.accounts.ConfirmPasswordChange(c.Request.Context(), req.Token, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var policyErr *security.PolicyError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}

		cases := []ErrorCase{
			{Err: usecase.ErrLinkNotFound, Status: http.StatusNotFound, Message: "link not found"},
			{Err: usecase.ErrLinkExpired, Status: http.StatusGone, Message: "link expired"},
			{Err: usecase.ErrLinkWrongType, Status: http.StatusNotFound, Message: "link not found"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password incorrect"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; all sessions revoked"})
}
