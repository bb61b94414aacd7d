package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"clinic-chat/internal/observability"
)

const (
	wsKind       = "user"
	wsRoutingKey = "ws_events.users"
)

// EventType discriminates server-originated live events.
type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventMessageRead    EventType = "message_read"
	EventChannelDeleted EventType = "channel_deleted"
)

// Event is the tagged payload written to live connections.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Conn is the subset of *websocket.Conn the registry writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	info ConnInfo

	// mu serializes writes; a websocket connection supports one writer.
	mu   sync.Mutex
	open bool
}

func (c *client) write(payload []byte, timeout time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return false, nil
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return false, err
	}
	return true, nil
}

func (c *client) markClosed() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// Registry maps user ids to their live connections. A user is present only
// while at least one of its connections is registered.
type Registry struct {
	mu           sync.RWMutex
	users        map[int]map[Conn]*client
	events       *observability.Events
	logger       zerolog.Logger
	writeTimeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger, events *observability.Events, writeTimeout time.Duration) *Registry {
	return &Registry{
		users:        make(map[int]map[Conn]*client),
		events:       events,
		logger:       logger.With().Str("component", "ws_registry").Logger(),
		writeTimeout: writeTimeout,
	}
}

// Register adds conn to userID's connection set.
func (r *Registry) Register(userID int, conn Conn, info ConnInfo) {
	r.mu.Lock()
	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[Conn]*client)
		r.users[userID] = conns
	}
	conns[conn] = &client{conn: conn, info: info, open: true}
	total := len(conns)
	r.mu.Unlock()

	r.logger.Debug().Int("user_id", userID).Str("conn_id", info.ConnID).Int("connections", total).Msg("connection registered")
}

// Deregister removes conn from userID's set and drops the user once the set is
// empty. It reports whether conn was registered.
func (r *Registry) Deregister(userID int, conn Conn) bool {
	r.mu.Lock()
	conns, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	c, ok := conns[conn]
	if ok {
		delete(conns, conn)
	}
	remaining := len(conns)
	if remaining == 0 {
		delete(r.users, userID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	c.markClosed()
	r.logger.Debug().Int("user_id", userID).Str("conn_id", c.info.ConnID).Int("remaining", remaining).Msg("connection deregistered")
	return true
}

// SendToUser writes event to every open connection of userID and returns how
// many writes succeeded. An offline user yields 0. Connections whose write
// fails are closed and evicted.
func (r *Registry) SendToUser(userID int, event Event) int {
	clients := r.snapshot(userID)
	if len(clients) == 0 {
		return 0
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(event.Type)).Msg("encode live event")
		return 0
	}

	delivered := 0
	for _, c := range clients {
		ok, err := c.write(payload, r.writeTimeout)
		if err != nil {
			r.evict(userID, c, err)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered
}

// SendToUsers calls SendToUser for each id in order. Duplicate ids receive the
// event once per occurrence.
func (r *Registry) SendToUsers(userIDs []int, event Event) int {
	total := 0
	for _, id := range userIDs {
		total += r.SendToUser(id, event)
	}
	return total
}

// ConnectionCount returns how many connections userID holds.
func (r *Registry) ConnectionCount(userID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// UserCount returns how many users hold at least one connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// IsOnline reports whether userID has a registered connection.
func (r *Registry) IsOnline(userID int) bool {
	return r.ConnectionCount(userID) > 0
}

// CloseAll sends a going-away close frame to every connection and empties the
// registry.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	users := r.users
	r.users = make(map[int]map[Conn]*client)
	r.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	for _, conns := range users {
		for conn, c := range conns {
			c.mu.Lock()
			c.open = false
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
			c.mu.Unlock()
		}
	}
}

func (r *Registry) snapshot(userID int) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.users[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) evict(userID int, c *client, cause error) {
	r.logger.Warn().Err(cause).Int("user_id", userID).Str("conn_id", c.info.ConnID).Msg("websocket write error")
	_ = c.conn.Close()
	if !r.Deregister(userID, c.conn) {
		return
	}
	observability.DecWSActive(wsKind)
	r.publishLifecycle(context.Background(), "ws_error", c.info, cause.Error())
}

func (r *Registry) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(wsKind, event)
	var durationMS int64
	if event != "ws_connect" {
		durationMS = time.Since(info.ConnectedAt).Milliseconds()
	}
	r.events.Publish(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"resource_id": info.UserID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
