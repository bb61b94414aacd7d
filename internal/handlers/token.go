package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-chat/internal/repositories"
)

// TokenHandler registers push destinations.
type TokenHandler struct {
	tokens repositories.TokenRepository
	logger zerolog.Logger
}

// NewTokenHandler builds a TokenHandler.
func NewTokenHandler(tokens repositories.TokenRepository, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

// RegisterToken stores a device token for a user. Re-registering a token moves
// it to the new user.
func (h *TokenHandler) RegisterToken(c *gin.Context) {
	var req struct {
		UserID   int     `json:"user_id"`
		Token    string  `json:"token"`
		Platform *string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 || req.Token == "" {
		badRequest(c, "user_id and token are required")
		return
	}

	if err := h.tokens.RegisterToken(c.Request.Context(), req.UserID, req.Token, req.Platform); err != nil {
		writeError(c, h.logger, err, "failed to register token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "FCM token registered"})
}
