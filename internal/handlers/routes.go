package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-chat/internal/ws"
)

// Routes groups the handlers mounted on the public router.
type Routes struct {
	Channels *ChannelHandler
	Messages *MessageHandler
	Tokens   *TokenHandler
	Reviews  *ReviewHandler
	Live     *ws.Handler
}

// Register mounts every endpoint on router. Unknown paths fall through to the
// websocket path check.
func (r Routes) Register(router *gin.Engine) {
	router.POST("/channels", r.Channels.CreateChannel)
	router.GET("/channels", r.Channels.ListChannels)
	router.GET("/channels/:id", r.Channels.GetChannel)
	router.DELETE("/channels/:id", r.Channels.CloseChannel)
	router.GET("/channels_count", r.Channels.CountChannels)

	router.POST("/messages", r.Messages.PostMessage)
	router.GET("/messages", r.Messages.ListMessages)
	router.GET("/messages/:id", r.Messages.GetMessage)
	router.PUT("/messages/:id/read", r.Messages.MarkRead)

	router.POST("/register-token", r.Tokens.RegisterToken)

	router.GET("/reviews", r.Reviews.ListReviews)
	router.GET("/reviews/:id", r.Reviews.GetReview)
	router.PUT("/reviews/:id", r.Reviews.UpdateReview)
	router.DELETE("/reviews/:id", r.Reviews.DeleteReview)

	if r.Live != nil {
		router.GET(ws.Path, r.Live.Handle)
		router.NoRoute(r.Live.RejectUnknownPath)
	}
}
