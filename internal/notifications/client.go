package notifications

import (
	"context"
	"sync"
	"time"

	"murmur/internal/middleware"
	"murmur/internal/observability"

	"github.com/fasthttp/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

// Conn is the part of a websocket connection the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ClientOptions bound what a single socket may push.
type ClientOptions struct {
	MaxMessageBytes int64
	FramesPerSecond float64
}

// Client sits between one websocket connection and the hub.
type Client struct {
	hub  *ChatHub
	Conn Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID string
	RoomID string

	// IncomingHandler processes one frame. A returned error closes the
	// socket with the close code derived from it.
	IncomingHandler func(ctx context.Context, c *Client, frame []byte) error

	opts      ClientOptions
	limiter   *rate.Limiter
	closeOnce sync.Once
}

// NewClient creates a client for userID in roomID.
func NewClient(hub *ChatHub, conn Conn, userID, roomID string, opts ClientOptions) *Client {
	c := &Client{
		hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		UserID: userID,
		RoomID: roomID,
		opts:   opts,
	}
	if opts.FramesPerSecond > 0 {
		burst := int(opts.FramesPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.FramesPerSecond), burst)
	}
	return c
}

// ReadPump reads frames until the peer leaves or a handler fails. The client
// is always removed from the hub on return.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Leave(context.WithoutCancel(ctx), c)
		_ = c.Conn.Close()
	}()

	if c.opts.MaxMessageBytes > 0 {
		c.Conn.SetReadLimit(c.opts.MaxMessageBytes)
	}
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if isReadLimit(err) {
				c.closeWith(err)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				middleware.Logger.WarnContext(ctx, "chat socket read failed", "user_id", c.UserID, "room_id", c.RoomID, "error", err)
			}
			return
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if c.IncomingHandler == nil {
			continue
		}
		if err := c.IncomingHandler(ctx, c, frame); err != nil {
			c.closeWith(err)
			return
		}
	}
}

// WritePump drains Send onto the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking. Messages to a full or closed
// client are dropped.
func (c *Client) TrySend(message []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		middleware.Logger.Warn("chat client buffer full, dropped message", "user_id", c.UserID, "room_id", c.RoomID)
		return false
	}
}

// closeWith sends the close frame matching err.
func (c *Client) closeWith(err error) {
	code := CloseCodeFor(err)
	if code == websocket.CloseInternalServerErr {
		middleware.Logger.Error("chat frame failed", "user_id", c.UserID, "room_id", c.RoomID, "error", err, "severity", "critical")
	} else {
		middleware.Logger.Warn("chat frame rejected", "user_id", c.UserID, "room_id", c.RoomID, "close_code", code, "error", err)
	}
	msg := websocket.FormatCloseMessage(code, closeReason(err, code))
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// shutdown closes the outbound channel once, which makes WritePump say goodbye.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Reject closes a socket that never joined the hub.
func (c *Client) Reject(err error) {
	c.closeWith(err)
	_ = c.Conn.Close()
}
