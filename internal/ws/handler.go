package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"clinic-chat/internal/observability"
)

const (
	// Path is the only endpoint live connections are accepted on.
	Path = "/ws"

	reasonInvalidPath   = "Invalid WebSocket path"
	reasonMissingUserID = "user_id required"
	reasonInvalidUserID = "invalid user_id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler accepts live connections and keeps them registered until they close.
type Handler struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(registry *Registry, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger.With().Str("component", "ws_handler").Logger()}
}

// Handle upgrades GET /ws?user_id=N and registers the connection. Requests
// without a usable user_id are upgraded and then closed with a policy
// violation.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("clinic-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	raw := c.Query("user_id")
	if raw == "" {
		h.refuse(c, reasonMissingUserID)
		return
	}
	userID, err := strconv.Atoi(raw)
	if err != nil || userID <= 0 {
		h.refuse(c, reasonInvalidUserID)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Int("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.registry.Register(userID, conn, info)
	observability.IncWSActive(wsKind)
	h.registry.publishLifecycle(ctx, "ws_connect", info, "")

	go h.readLoop(conn, info)
}

// readLoop drains inbound frames until the peer goes away. Clients do not send
// anything meaningful; reading is what surfaces the close.
func (h *Handler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		if h.registry.Deregister(info.UserID, conn) {
			observability.DecWSActive(wsKind)
			h.registry.publishLifecycle(observability.WithRequestID(context.Background(), info.RequestID), "ws_disconnect", info, closeReason)
		}
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.registry.publishLifecycle(context.Background(), "ws_error", info, closeReason)
			}
			return
		}
	}
}

// RejectUnknownPath is installed as the router's NoRoute handler. Websocket
// handshakes on any path other than Path are refused with a policy violation;
// plain HTTP requests get a 404.
func (h *Handler) RejectUnknownPath(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) && c.Request.URL.Path != Path {
		h.refuse(c, reasonInvalidPath)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func (h *Handler) refuse(c *gin.Context, reason string) {
	h.logger.Info().Str("path", c.Request.URL.Path).Str("reason", reason).Msg("websocket connection rejected")
	observability.IncWSEvent(wsKind, "ws_rejected")

	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
