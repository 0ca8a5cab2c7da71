package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linzell/authcore/internal/transport/http/middleware"
	"github.com/linzell/authcore/internal/usecase"
)

// ProfileHandler streams live profile state over Server-Sent Events.
type ProfileHandler struct {
	feed *usecase.ProfileFeedService
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(feed *usecase.ProfileFeedService) *ProfileHandler {
	return &ProfileHandler{feed: feed}
}

// Stream godoc
// @Summary Stream the authenticated user's profile
// @Description Emits the current profile snapshot immediately, then a fresh snapshot after every change. The stream ends when the account is deleted or the feed fails.
// @Tags Profile
// @Security Bearer
// @Produce text/event-stream
// @Success 200 {object} ProfilePayload
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/account/profile/stream [get]
func (h *ProfileHandler) Stream(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "profile feed unavailable"))
		return
	}

	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	events, err := h.feed.StreamProfile(c.Request.Context(), session)
	if err != nil {
		if errors.Is(err, usecase.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "profile not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to open profile stream"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		event, open := <-events
		if !open {
			return false
		}

		if event.Err != nil {
			if errors.Is(event.Err, usecase.ErrProfileNotFound) {
				c.SSEvent("end", gin.H{"reason": "profile deleted"})
			} else {
				c.SSEvent("end", gin.H{"reason": "stream interrupted"})
			}
			return false
		}

		c.SSEvent("profile", newProfilePayload(*event.Snapshot))
		return true
	})
}
