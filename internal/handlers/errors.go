package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-chat/internal/delivery"
	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
)

// writeError maps a domain error onto a status and JSON body. Unknown errors
// are logged and reported as 500 with a fixed message.
func writeError(c *gin.Context, logger zerolog.Logger, err error, fallback string) {
	var conflict *repositories.ConflictError
	switch {
	case errors.Is(err, repositories.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	case errors.Is(err, repositories.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
	case errors.Is(err, models.ErrChannelTerminal):
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "field": conflict.Field})
	case errors.Is(err, repositories.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, delivery.ErrImageTranscode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Str("route", c.FullPath()).Str("request_id", requestIDFromContext(c)).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
