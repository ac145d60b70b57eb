package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/protocol"
)

func dialWS(t *testing.T, env *testEnv, header http.Header) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func TestWebSocketStreamsEventsAndControls(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{}
	header.Set(auth.HeaderUserID, "alice")
	conn := dialWS(t, env, header)

	ack := readUntil(t, conn, protocol.TypeHelloAck)
	assert.Equal(t, "alice", ack["user_id"])
	require.Eventually(t, func() bool { return env.hub.HasActiveConnections("alice") }, time.Second, 5*time.Millisecond)

	session, err := env.svc.StartSession(context.Background(), "alice", domain.StartSessionRequest{Type: domain.SessionTypeMeeting})
	require.NoError(t, err)

	started := readUntil(t, conn, string(domain.EventTypeSessionStarted))
	assert.Equal(t, session.ID, started["session_id"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypePause, "request_id": "req-1"}))
	reply := readUntil(t, conn, protocol.TypeAck)
	assert.Equal(t, "req-1", reply["request_id"])
	readUntil(t, conn, string(domain.EventTypeSessionPaused))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypeDismissFeedback, "request_id": "req-2", "feedback_id": "fb_missing"}))
	errMsg := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, "req-2", errMsg["request_id"])
	assert.Equal(t, protocol.ErrorCodeNotFound, errMsg["code"])
}

func TestWebSocketHelloRequired(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, nil)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypePause}))
	errMsg := readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeHelloRequired, errMsg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypeHello}))
	errMsg = readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeUnauthorized, errMsg["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypeHello, "user_id": "bob", "request_id": "hello-1"}))
	ack := readUntil(t, conn, protocol.TypeHelloAck)
	assert.Equal(t, "bob", ack["user_id"])
	assert.Equal(t, "hello-1", ack["request_id"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypeResume}))
	errMsg = readUntil(t, conn, protocol.TypeError)
	assert.Equal(t, protocol.ErrorCodeNoActiveSession, errMsg["code"])
}
