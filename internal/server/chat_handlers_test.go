package server

import (
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"murmur/internal/models"
	"murmur/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvedDialogue opens a dialogue from a to b and lets b approve it.
func (ts *testServer) approvedDialogue(t *testing.T, a, b session) models.ChatRoomView {
	t.Helper()
	var room models.ChatRoomView
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodPost, "/chats/dialogue/"+b.ID, a.token(), nil, &room))
	status, _ := ts.call(t, http.MethodPost, "/chats/"+room.ID+"/approve", b.token(), nil)
	require.Equal(t, http.StatusNoContent, status)
	return room
}

func (ts *testServer) chatToken(t *testing.T, s session, roomID string) string {
	t.Helper()
	var tok models.ChatToken
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodGet, "/chats/"+roomID+"/token", s.token(), nil, &tok))
	require.Equal(t, roomID, tok.RoomID)
	return tok.Token
}

// listen serves the app on a loopback port and returns its address.
func (ts *testServer) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = ts.srv.App().Shutdown() })
	return ln.Addr().String()
}

func dialChat(t *testing.T, addr, token, roomID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/"+token+"?room_id="+roomID, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func requireCloseCode(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected a close frame, got %v", err)
		assert.Equal(t, code, closeErr.Code)
		return
	}
}

func TestChatRooms(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	carol := ts.register(t, "carol")

	var room models.ChatRoomView
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodPost, "/chats/dialogue/"+bob.ID, alice.token(), nil, &room))
	assert.False(t, room.Approved)
	assert.Len(t, room.Participants, 2)

	status, data := ts.call(t, http.MethodGet, "/chats/"+room.ID+"/token", alice.token(), nil)
	assert.Equal(t, http.StatusBadRequest, status, "unapproved rooms cannot be joined")
	assert.Equal(t, models.CodeInvalidAction, errorCode(t, data))

	status, _ = ts.call(t, http.MethodPost, "/chats/"+room.ID+"/approve", alice.token(), nil)
	assert.Equal(t, http.StatusBadRequest, status, "the initiator cannot approve")
	status, _ = ts.call(t, http.MethodPost, "/chats/"+room.ID+"/approve", bob.token(), nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = ts.call(t, http.MethodGet, "/chats/"+room.ID+"/messages", carol.token(), nil)
	assert.NotEqual(t, http.StatusOK, status, "outsiders cannot read the room")

	var group models.ChatRoomView
	status = ts.callJSON(t, http.MethodPost, "/chats/group", alice.token(), map[string]interface{}{
		"name": "friends", "users_ids": []string{bob.ID, carol.ID},
	}, &group)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, group.IsGroup)
	assert.Equal(t, "friends", group.Name)

	var rooms []models.ChatRoomView
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodGet, "/chats/0", alice.token(), nil, &rooms))
	assert.Len(t, rooms, 2)

	status, data = ts.call(t, http.MethodPost, "/chats/dialogue/"+alice.ID, alice.token(), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeInvalidAction, errorCode(t, data))
}

func TestChatUpgradeRequired(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.call(t, http.MethodGet, "/ws/whatever?room_id=x", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestChatSocketRelaysToPeers(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	room := ts.approvedDialogue(t, alice, bob)
	aliceToken := ts.chatToken(t, alice, room.ID)
	bobToken := ts.chatToken(t, bob, room.ID)

	addr := ts.listen(t)
	a := dialChat(t, addr, aliceToken, room.ID)
	b := dialChat(t, addr, bobToken, room.ID)
	require.Eventually(t, func() bool { return len(ts.srv.hub.Present(room.ID)) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ts.srv.hub.Present(room.ID))

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"action":"send","message":"hi bob"}`)))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := b.ReadMessage()
	require.NoError(t, err)
	var event notifications.ChatEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "send", event.Action)
	assert.Equal(t, "hi bob", event.Message.Text)
	require.NotNil(t, event.Message.OwnerID)
	assert.Equal(t, alice.ID, *event.Message.OwnerID)

	var messages []models.MessageView
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodGet, "/chats/"+room.ID+"/messages", bob.token(), nil, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, event.Message.ID, messages[0].ID)

	var history []models.MessageView
	require.Equal(t, http.StatusOK, ts.callJSON(t, http.MethodGet, "/chats/"+room.ID+"/history", bob.token(), nil, &history))
	require.Len(t, history, 1)

	// A malformed frame ends only the sender's socket.
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{")))
	requireCloseCode(t, a, websocket.CloseInvalidFramePayloadData)
	require.Eventually(t, func() bool { return len(ts.srv.hub.Present(room.ID)) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{bob.ID}, ts.srv.hub.Present(room.ID))
}

func TestChatSocketRejectsBadFrames(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	room := ts.approvedDialogue(t, alice, bob)
	addr := ts.listen(t)

	conn := dialChat(t, addr, ts.chatToken(t, alice, room.ID), room.ID)
	require.Eventually(t, func() bool { return len(ts.srv.hub.Present(room.ID)) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"shout","message":"x"}`)))
	requireCloseCode(t, conn, notifications.CloseSchemaMismatch)
}

func TestChatTokenIsOneTime(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")
	room := ts.approvedDialogue(t, alice, bob)
	token := ts.chatToken(t, alice, room.ID)
	addr := ts.listen(t)

	first := dialChat(t, addr, token, room.ID)
	require.Eventually(t, func() bool { return len(ts.srv.hub.Present(room.ID)) == 1 }, 5*time.Second, 10*time.Millisecond)

	second := dialChat(t, addr, token, room.ID)
	requireCloseCode(t, second, notifications.CloseUnauthorized)

	forged := dialChat(t, addr, "forged", room.ID)
	requireCloseCode(t, forged, notifications.CloseUnauthorized)

	_ = first.Close()
	require.Eventually(t, func() bool { return len(ts.srv.hub.Present(room.ID)) == 0 }, 5*time.Second, 10*time.Millisecond)
}
