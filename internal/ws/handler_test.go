package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := newTestRegistry()
	handler := NewHandler(registry, zerolog.Nop())

	router := gin.New()
	router.GET(Path, handler.Handle)
	router.NoRoute(handler.RejectUnknownPath)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func expectPolicyViolation(t *testing.T, url, reason string) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, reason, closeErr.Text)
}

func TestHandleRejectsMissingUserID(t *testing.T) {
	srv, registry := newTestServer(t)
	expectPolicyViolation(t, wsURL(srv, "/ws"), "user_id required")
	assert.Equal(t, 0, registry.UserCount())
}

func TestHandleRejectsNonNumericUserID(t *testing.T) {
	srv, _ := newTestServer(t)
	expectPolicyViolation(t, wsURL(srv, "/ws?user_id=abc"), "invalid user_id")
}

func TestHandleRejectsUnknownPath(t *testing.T) {
	srv, registry := newTestServer(t)
	expectPolicyViolation(t, wsURL(srv, "/socket?user_id=3"), "Invalid WebSocket path")
	assert.Equal(t, 0, registry.UserCount())
}

func TestUnknownPathPlainHTTPIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRegistersAndDeregisters(t *testing.T) {
	srv, registry := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?user_id=12"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return registry.ConnectionCount(12) == 1 }, 2*time.Second, 10*time.Millisecond)

	registry.SendToUser(12, Event{Type: EventMessageRead, Data: map[string]int{"message_id": 3, "channel_id": 4}})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_read","data":{"message_id":3,"channel_id":4}}`, string(payload))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return !registry.IsOnline(12) }, 2*time.Second, 10*time.Millisecond)
}
