// ABOUTME: Tests for the live WebSocket endpoint
// ABOUTME: Covers event delivery, inbound frames, resend suppression, and presence

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
)

// dialWS connects an authenticated WebSocket session for the given user.
func dialWS(t *testing.T, ts *testServer, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/chats/ws?token=" + ts.token(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// The handler subscribes right after the upgrade; wait until the hub
	// sees the session so events published next are not lost.
	require.Eventually(t, func() bool {
		return ts.hub.Online(userID)
	}, 2*time.Second, 5*time.Millisecond)

	return conn
}

// readEvent reads frames until one matches the wanted type or the deadline hits.
func readEvent(t *testing.T, conn *websocket.Conn, want chat.EventType) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "expected %s event before deadline", want)

		var frame map[string]any
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == string(want) {
			return frame
		}
	}
}

func TestWS_DeliversMessageEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")
	ts.seedUser(t, "u2", "Bob")

	chatID := ts.createConversation(t, "u1", []string{"u2"}, false, "")

	conn := dialWS(t, ts, "u2")

	status, _ := ts.request(t, "u1", http.MethodPost, "/api/chats/"+chatID+"/messages", map[string]any{
		"content": "ping",
	})
	require.Equal(t, http.StatusCreated, status)

	frame := readEvent(t, conn, chat.EventMessageCreated)
	assert.Equal(t, chatID, frame["conversationId"])
	msg := frame["message"].(map[string]any)
	assert.Equal(t, "ping", msg["content"])
}

func TestWS_SendMessageFrame(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")
	ts.seedUser(t, "u2", "Bob")

	chatID := ts.createConversation(t, "u1", []string{"u2"}, false, "")

	receiver := dialWS(t, ts, "u2")
	sender := dialWS(t, ts, "u1")

	err := sender.WriteJSON(map[string]any{
		"type":        "send_message",
		"chatId":      chatID,
		"content":     "over the wire",
		"clientMsgId": "c-1",
	})
	require.NoError(t, err)

	frame := readEvent(t, receiver, chat.EventMessageCreated)
	msg := frame["message"].(map[string]any)
	assert.Equal(t, "over the wire", msg["content"])
}

func TestWS_ResendSuppression(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")
	ts.seedUser(t, "u2", "Bob")

	chatID := ts.createConversation(t, "u1", []string{"u2"}, false, "")

	sender := dialWS(t, ts, "u1")

	for i := 0; i < 2; i++ {
		err := sender.WriteJSON(map[string]any{
			"type":        "send_message",
			"chatId":      chatID,
			"content":     "once only",
			"clientMsgId": "retry-1",
		})
		require.NoError(t, err)
	}

	// Give the second frame time to be (not) processed
	require.Eventually(t, func() bool {
		msgs, err := ts.service.ListMessagesAfter(context.Background(), "u1", chatID, time.Time{})
		return err == nil && len(msgs) >= 1
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	msgs, err := ts.service.ListMessagesAfter(context.Background(), "u1", chatID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestWS_FailedSendStaysRetryable(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")
	ts.seedUser(t, "u2", "Bob")

	chatID := ts.createConversation(t, "u1", []string{"u2"}, false, "")

	sender := dialWS(t, ts, "u1")

	// First attempt targets a conversation that does not exist, so the
	// send is rejected
	err := sender.WriteJSON(map[string]any{
		"type":        "send_message",
		"chatId":      "nope",
		"content":     "hello",
		"clientMsgId": "retry-9",
	})
	require.NoError(t, err)

	require.NoError(t, sender.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, sender.ReadJSON(&frame))
	require.Equal(t, "error", frame["type"])

	// The rejected frame must not have consumed the client id: the retry
	// against the real conversation goes through
	err = sender.WriteJSON(map[string]any{
		"type":        "send_message",
		"chatId":      chatID,
		"content":     "hello",
		"clientMsgId": "retry-9",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs, err := ts.service.ListMessagesAfter(context.Background(), "u1", chatID, time.Time{})
		return err == nil && len(msgs) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWS_MarkReadFrame(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")
	ts.seedUser(t, "u2", "Bob")

	chatID := ts.createConversation(t, "u1", []string{"u2"}, false, "")
	ts.request(t, "u1", http.MethodPost, "/api/chats/"+chatID+"/messages", map[string]any{
		"content": "unread",
	})

	sender := dialWS(t, ts, "u1")
	reader := dialWS(t, ts, "u2")

	err := reader.WriteJSON(map[string]any{
		"type":   "mark_read",
		"chatId": chatID,
	})
	require.NoError(t, err)

	frame := readEvent(t, sender, chat.EventReadStateChanged)
	assert.Equal(t, "u2", frame["readerId"])
}

func TestWS_ErrorFrameOnRejectedSend(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")

	conn := dialWS(t, ts, "u1")

	err := conn.WriteJSON(map[string]any{
		"type":    "send_message",
		"chatId":  "nope",
		"content": "into the void",
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame["type"])
	assert.NotEmpty(t, frame["message"])
}

func TestWS_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/chats/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestWS_PresenceLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "u1", "Alice")

	conn := dialWS(t, ts, "u1")

	require.Eventually(t, func() bool {
		u, err := ts.store.GetUser(context.Background(), "u1")
		return err == nil && u.Online
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, ts.hub.Online("u1"))

	conn.Close()

	require.Eventually(t, func() bool {
		u, err := ts.store.GetUser(context.Background(), "u1")
		return err == nil && !u.Online
	}, 2*time.Second, 20*time.Millisecond)
}
