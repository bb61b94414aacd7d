package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
)

// MessageDelivery stores messages and fans them out.
type MessageDelivery interface {
	Send(ctx context.Context, msg models.NewMessage) (models.DeliveryReport, error)
	MarkRead(ctx context.Context, messageID int) (models.Message, error)
}

// MessageHandler serves message endpoints.
type MessageHandler struct {
	messages repositories.MessageRepository
	delivery MessageDelivery
	logger   zerolog.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, delivery MessageDelivery, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, delivery: delivery, logger: logger}
}

type sendResponse struct {
	models.Message
	Delivered       bool `json:"delivered"`
	LiveConnections int  `json:"live_connections"`
}

// PostMessage stores a message and delivers it to the channel.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		ChannelID int     `json:"channel_id" binding:"required"`
		UserID    int     `json:"user_id" binding:"required"`
		Content   *string `json:"content"`
		Image     string  `json:"image"`
		Type      string  `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var image []byte
	if req.Image != "" {
		decoded, err := decodeImage(req.Image)
		if err != nil {
			badRequest(c, "image must be base64 encoded")
			return
		}
		image = decoded
	}

	report, err := h.delivery.Send(c.Request.Context(), models.NewMessage{
		ChannelID: req.ChannelID,
		UserID:    req.UserID,
		Content:   req.Content,
		Image:     image,
		Type:      req.Type,
	})
	if err != nil {
		writeError(c, h.logger, err, "could not send message")
		return
	}

	c.JSON(http.StatusCreated, sendResponse{
		Message:         report.Message,
		Delivered:       report.Delivered,
		LiveConnections: report.LiveConnections,
	})
}

// ListMessages returns messages for a channel and/or sender.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	channelID, ok := optionalIntQuery(c, "channel_id")
	if !ok {
		badRequest(c, "invalid channel_id")
		return
	}
	userID, ok := optionalIntQuery(c, "user_id")
	if !ok {
		badRequest(c, "invalid user_id")
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), models.MessageFilter{ChannelID: channelID, UserID: userID})
	if err != nil {
		writeError(c, h.logger, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// GetMessage returns one message.
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "invalid message id")
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "failed to load message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// MarkRead flags a message as read and notifies the channel.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "invalid message id")
		return
	}

	msg, err := h.delivery.MarkRead(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "failed to mark message as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read", "messageData": msg})
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	return base64.StdEncoding.DecodeString(raw)
}
