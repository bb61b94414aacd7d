package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
)

// ChannelCloser runs the archive-or-delete step for a channel.
type ChannelCloser interface {
	Close(ctx context.Context, channelID int) (models.CloseResult, error)
}

// ChannelHandler serves channel endpoints.
type ChannelHandler struct {
	channels repositories.ChannelRepository
	closer   ChannelCloser
	logger   zerolog.Logger
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(channels repositories.ChannelRepository, closer ChannelCloser, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, closer: closer, logger: logger}
}

// CreateChannel opens a channel between two users.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req struct {
		UserID0 int    `json:"user_id0" binding:"required"`
		UserID1 int    `json:"user_id1" binding:"required"`
		Type    string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	channel, err := h.channels.CreateChannel(c.Request.Context(), req.UserID0, req.UserID1, req.Type)
	if err != nil {
		writeError(c, h.logger, err, "could not create channel")
		return
	}
	c.JSON(http.StatusCreated, channel)
}

// ListChannels returns channels filtered by participant, kind and archive state.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	userID, ok := optionalIntQuery(c, "user_id")
	if !ok {
		badRequest(c, "invalid user_id")
		return
	}
	filter := models.ChannelFilter{
		UserID:   userID,
		Type:     c.Query("type"),
		Archived: c.Query("archived") == "true",
		All:      c.Query("all") == "true",
	}

	channels, err := h.channels.ListChannels(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err, "failed to load channels")
		return
	}
	if len(channels) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No channels found"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetChannel returns one channel.
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "Invalid channel ID")
		return
	}

	channel, err := h.channels.GetChannel(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "failed to load channel")
		return
	}
	c.JSON(http.StatusOK, channel)
}

// CloseChannel archives an active channel or deletes an archived one.
func (h *ChannelHandler) CloseChannel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "Invalid channel ID")
		return
	}

	result, err := h.closer.Close(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "failed to close channel")
		return
	}

	message := "Channel archived"
	if result.Outcome == models.CloseDeleted {
		message = "Channel deleted"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"outcome": result.Outcome,
		"channel": result.Channel,
	})
}

// CountChannels reports channel creation per day or month.
func (h *ChannelHandler) CountChannels(c *gin.Context) {
	staffID, ok := optionalIntQuery(c, "staff_id")
	if !ok {
		badRequest(c, "Invalid staff_id parameter")
		return
	}
	period := "day"
	if c.Query("period") == "month" {
		period = "month"
	}

	ctx := c.Request.Context()
	if staffID != nil {
		staff, err := h.channels.IsStaff(ctx, *staffID)
		if err != nil {
			writeError(c, h.logger, err, "failed to verify staff member")
			return
		}
		if !staff {
			badRequest(c, "User is not a doctor or customer service staff")
			return
		}
	}

	counts, err := h.channels.CountByPeriod(ctx, staffID, period, c.Query("type"))
	if err != nil {
		writeError(c, h.logger, err, "failed to count channels")
		return
	}
	if counts == nil {
		counts = []models.ChannelCount{}
	}
	c.JSON(http.StatusOK, gin.H{
		"staff_id": staffID,
		"period":   period,
		"data":     counts,
	})
}
