package server

import (
	"context"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade lets only websocket handshakes reach the chat handler.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// WebSocketChatHandler handles WS /ws/:token?room_id=. The chat token is
// consumed on connect; a bad token closes the socket with 3000.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		token := conn.Params("token")
		roomID := conn.Query("room_id")

		var uid string
		err := s.svc.Do(ctx, func(sc *service.Scope) error {
			var err error
			uid, err = sc.Chats.Join(ctx, token, roomID)
			return err
		})

		client := notifications.NewClient(s.hub, conn, uid, roomID, notifications.ClientOptions{
			MaxMessageBytes: int64(s.config.ChatMaxMessageBytes),
			FramesPerSecond: s.config.ChatFramesPerSecond,
		})
		if err != nil {
			client.Reject(err)
			return
		}

		ctx = middleware.WithUserID(ctx, uid)
		client.IncomingHandler = s.handleChatFrame
		if err := s.hub.Join(ctx, client); err != nil {
			// The relay still works without the mirrored presence list.
			middleware.Logger.WarnContext(ctx, "chat presence update failed", "room_id", roomID, "error", err)
		}

		go client.WritePump()
		client.ReadPump(ctx)
	})
}

// handleChatFrame persists one client action and relays the result to the
// rest of the room.
func (s *Server) handleChatFrame(ctx context.Context, c *notifications.Client, data []byte) error {
	frame, err := notifications.DecodeFrame(data)
	if err != nil {
		return err
	}

	var view *models.MessageView
	err = s.svc.Do(ctx, func(sc *service.Scope) error {
		view, err = sc.Chats.Apply(ctx, c.UserID, c.RoomID, frame)
		return err
	})
	if err != nil {
		return err
	}

	s.hub.Broadcast(c.RoomID, c, notifications.ChatEvent{Action: frame.Action, Message: *view})
	return nil
}
