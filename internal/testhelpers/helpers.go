// Package testhelpers provides the HTTP and WebSocket helpers shared by the
// server package tests.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/presence"
)

// TestOrigin is the Origin header sent by ConnectWebSocket; it matches the
// default allowlist.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every read performed by the helpers.
const DefaultTimeout = 2 * time.Second

// MakeRequest executes an HTTP request with a 5-second timeout and fails the
// test if it cannot be made.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err, "create request")

	resp, err := client.Do(req)
	require.NoError(t, err, "make request")
	return resp
}

// AssertStatusCode checks the response status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "status code")
}

// AssertContentType checks the response Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	assert.Equal(t, expected, resp.Header.Get("Content-Type"), "content type")
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with TestOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header; an empty
// origin omits the header.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MustConnect dials url and registers a cleanup that closes the connection.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(url)
	require.NoError(t, err, "dial websocket")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one envelope. A nil data omits the data field.
func SendEvent(conn *websocket.Conn, event string, data any) error {
	env := map[string]any{"event": event}
	if data != nil {
		env["data"] = data
	}
	return conn.WriteJSON(env)
}

// ReadEvent reads the next envelope within timeout.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (chat.Envelope, error) {
	var env chat.Envelope
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return env, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(raw, &env)
	return env, err
}

// ExpectEvent requires the next frame to be event and decodes its data into
// out when out is not nil.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()
	env, err := ReadEvent(conn, DefaultTimeout)
	require.NoError(t, err, "waiting for %s", event)
	require.Equal(t, event, env.Event, "unexpected event, data: %s", env.Data)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), "decode %s", event)
	}
}

// ExpectNoEvent requires that nothing arrives within wait. The connection
// must not be read again afterwards, since gorilla treats a read timeout as
// permanent.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	env, err := ReadEvent(conn, wait)
	require.Error(t, err, "unexpected %s: %s", env.Event, env.Data)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected a read timeout, got %v", err)
}

// Join sends a join for username and consumes the users_list and
// message_history replies.
func Join(t *testing.T, conn *websocket.Conn, username string) ([]presence.User, []chat.Message) {
	t.Helper()
	require.NoError(t, SendEvent(conn, chat.EventJoin, chat.JoinPayload{Username: username}))

	var users []presence.User
	var history []chat.Message
	ExpectEvent(t, conn, chat.EventUsersList, &users)
	ExpectEvent(t, conn, chat.EventMessageHistory, &history)
	return users, history
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
