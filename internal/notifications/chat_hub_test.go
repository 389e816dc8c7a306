package notifications

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"murmur/internal/cache"
	"murmur/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/fasthttp/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn replays queued frames and records what the pumps write.
type fakeConn struct {
	mu     sync.Mutex
	frames chan []byte
	limit  int64
	closes []int
	writes [][]byte
	closed bool
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames))}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	close(c.frames)
	return c
}

func (f *fakeConn) SetReadLimit(limit int64)                  { f.limit = limit }
func (f *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	frame, ok := <-f.frames
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	if f.limit > 0 && int64(len(frame)) > f.limit {
		return 0, nil, websocket.ErrReadLimit
	}
	return websocket.TextMessage, frame, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.closes = append(f.closes, int(binary.BigEndian.Uint16(data[:2])))
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.closes...)
}

func setupHub(t *testing.T) (*miniredis.Miniredis, *ChatHub) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewChatHub(cache.NewStore(rdb))
}

func presence(t *testing.T, mr *miniredis.Miniredis, roomID string) []string {
	t.Helper()
	if !mr.Exists("chat-connections-room:" + roomID) {
		return nil
	}
	ids, err := mr.List("chat-connections-room:" + roomID)
	require.NoError(t, err)
	return ids
}

func TestChatHub_JoinLeaveMirrorsPresence(t *testing.T) {
	mr, hub := setupHub(t)
	ctx := context.Background()

	alice := NewClient(hub, newFakeConn(), "alice", "r1", ClientOptions{})
	bob := NewClient(hub, newFakeConn(), "bob", "r1", ClientOptions{})
	require.NoError(t, hub.Join(ctx, alice))
	require.NoError(t, hub.Join(ctx, bob))

	assert.Equal(t, []string{"alice", "bob"}, hub.Present("r1"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, presence(t, mr, "r1"))

	hub.Leave(ctx, alice)
	assert.Equal(t, []string{"bob"}, hub.Present("r1"))
	assert.Equal(t, []string{"bob"}, presence(t, mr, "r1"))

	hub.Leave(ctx, alice)
	assert.Equal(t, []string{"bob"}, presence(t, mr, "r1"), "second leave is a no-op")

	hub.Leave(ctx, bob)
	assert.Empty(t, hub.Present("r1"))
	assert.False(t, mr.Exists("chat-connections-room:r1"))

	_, open := <-alice.Send
	assert.False(t, open, "leaving closes the outbound channel")
}

func TestChatHub_BroadcastSkipsSenderAndOtherRooms(t *testing.T) {
	_, hub := setupHub(t)
	ctx := context.Background()

	sender := NewClient(hub, newFakeConn(), "alice", "r1", ClientOptions{})
	peer := NewClient(hub, newFakeConn(), "bob", "r1", ClientOptions{})
	outsider := NewClient(hub, newFakeConn(), "carol", "r2", ClientOptions{})
	for _, c := range []*Client{sender, peer, outsider} {
		require.NoError(t, hub.Join(ctx, c))
	}

	owner := "alice"
	event := ChatEvent{Action: "send", Message: models.MessageView{ID: "m1", RoomID: "r1", OwnerID: &owner, Text: "hi"}}
	assert.Equal(t, 1, hub.Broadcast("r1", sender, event))

	require.Len(t, peer.Send, 1)
	var got ChatEvent
	require.NoError(t, json.Unmarshal(<-peer.Send, &got))
	assert.Equal(t, "send", got.Action)
	assert.Equal(t, "m1", got.Message.ID)
	assert.Equal(t, "hi", got.Message.Text)

	assert.Empty(t, sender.Send)
	assert.Empty(t, outsider.Send)
}

func TestChatHub_ShutdownClosesEveryClient(t *testing.T) {
	mr, hub := setupHub(t)
	ctx := context.Background()

	a := NewClient(hub, newFakeConn(), "alice", "r1", ClientOptions{})
	b := NewClient(hub, newFakeConn(), "bob", "r2", ClientOptions{})
	require.NoError(t, hub.Join(ctx, a))
	require.NoError(t, hub.Join(ctx, b))

	require.NoError(t, hub.Shutdown(ctx))
	for _, c := range []*Client{a, b} {
		_, open := <-c.Send
		assert.False(t, open)
	}
	assert.False(t, mr.Exists("chat-connections-room:r1"))
	assert.False(t, mr.Exists("chat-connections-room:r2"))
	assert.False(t, a.TrySend([]byte("late")), "sending to a closed client is dropped")
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	_, hub := setupHub(t)
	c := NewClient(hub, newFakeConn(), "alice", "r1", ClientOptions{})
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
}

func TestClient_ReadPumpClosesWithMappedCode(t *testing.T) {
	cases := []struct {
		name    string
		frame   string
		handler func(context.Context, *Client, []byte) error
		code    int
	}{
		{
			name:  "invalid json",
			frame: `{"action":`,
			code:  websocket.CloseInvalidFramePayloadData,
		},
		{
			name:  "schema mismatch",
			frame: `{"action":"shout"}`,
			code:  CloseSchemaMismatch,
		},
		{
			name:  "too big",
			frame: `{"action":"send","message":"` + string(make([]byte, 200)) + `"}`,
			code:  websocket.CloseMessageTooBig,
		},
		{
			name:  "invalid action",
			frame: `{"action":"delete","message_id":"m1"}`,
			handler: func(context.Context, *Client, []byte) error {
				return models.NewInvalidActionError("not the owner")
			},
			code: websocket.ClosePolicyViolation,
		},
		{
			name:  "unauthorized",
			frame: `{"action":"send","message":"hi"}`,
			handler: func(context.Context, *Client, []byte) error {
				return models.NewUnauthorizedError("token revoked")
			},
			code: CloseUnauthorized,
		},
		{
			name:  "internal",
			frame: `{"action":"send","message":"hi"}`,
			handler: func(context.Context, *Client, []byte) error {
				return models.NewStoreError(errors.New("connection reset"))
			},
			code: websocket.CloseInternalServerErr,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mr, hub := setupHub(t)
			ctx := context.Background()

			conn := newFakeConn(tc.frame)
			c := NewClient(hub, conn, "alice", "r1", ClientOptions{MaxMessageBytes: 128})
			c.IncomingHandler = func(ctx context.Context, c *Client, data []byte) error {
				if _, err := DecodeFrame(data); err != nil {
					return err
				}
				if tc.handler != nil {
					return tc.handler(ctx, c, data)
				}
				return nil
			}
			require.NoError(t, hub.Join(ctx, c))

			c.ReadPump(ctx)

			assert.Equal(t, []int{tc.code}, conn.closeCodes())
			assert.True(t, conn.closed)
			assert.Empty(t, hub.Present("r1"))
			assert.False(t, mr.Exists("chat-connections-room:r1"))
		})
	}
}

func TestClient_ReadPumpHandlesFramesUntilPeerLeaves(t *testing.T) {
	_, hub := setupHub(t)
	ctx := context.Background()

	conn := newFakeConn(`{"action":"send","message":"one"}`, `{"action":"change","message":"two","message_id":"m1"}`)
	c := NewClient(hub, conn, "alice", "r1", ClientOptions{FramesPerSecond: 100})

	var seen []string
	c.IncomingHandler = func(_ context.Context, _ *Client, data []byte) error {
		frame, err := DecodeFrame(data)
		if err != nil {
			return err
		}
		seen = append(seen, frame.Action)
		return nil
	}
	require.NoError(t, hub.Join(ctx, c))

	c.ReadPump(ctx)

	assert.Equal(t, []string{"send", "change"}, seen)
	assert.Empty(t, conn.closeCodes(), "a clean close sends no error code")
	assert.Empty(t, hub.Present("r1"))
}

func TestCloseCodeFor(t *testing.T) {
	assert.Equal(t, websocket.CloseMessageTooBig, CloseCodeFor(models.NewWebsocketProtocolError("frame too large")))
	assert.Equal(t, websocket.ClosePolicyViolation, CloseCodeFor(models.NewNotFoundError("message", "m1")))
	assert.Equal(t, CloseSchemaMismatch, CloseCodeFor(models.NewValidationError("message is too short")))
	assert.Equal(t, websocket.CloseInternalServerErr, CloseCodeFor(errors.New("boom")))
}
