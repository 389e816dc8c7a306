package server

import (
	"murmur/internal/models"
	"murmur/internal/service"
	"murmur/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// OpenDialogue handles POST /chats/dialogue/:user_id
func (s *Server) OpenDialogue(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	other, err := parseUUID(c, "user_id", "User")
	if err != nil {
		return err
	}
	return s.room(c, func(sc *service.Scope) (*models.ChatRoomView, error) {
		return sc.Chats.OpenDialogue(c.UserContext(), uid, other)
	})
}

// CreateGroup handles POST /chats/group
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req validation.CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return s.room(c, func(sc *service.Scope) (*models.ChatRoomView, error) {
		return sc.Chats.CreateGroup(c.UserContext(), uid, req)
	})
}

func (s *Server) room(c *fiber.Ctx, fn func(*service.Scope) (*models.ChatRoomView, error)) error {
	var room *models.ChatRoomView
	err := s.do(c, func(sc *service.Scope) error {
		var err error
		room, err = fn(sc)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(room)
}

// ApproveRoom handles POST /chats/:room_id/approve
func (s *Server) ApproveRoom(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	roomID, err := parseUUID(c, "room_id", "ChatRoom")
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Chats.Approve(c.UserContext(), uid, roomID)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetRooms handles GET /chats/:page, most recent activity first
func (s *Server) GetRooms(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c, "page")
	if err != nil {
		return err
	}

	var rooms []models.ChatRoomView
	err = s.do(c, func(sc *service.Scope) error {
		rooms, err = sc.Chats.Rooms(c.UserContext(), uid, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, rooms)
}

// GetMessages handles GET /chats/:room_id/messages?page=
func (s *Server) GetMessages(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	roomID, err := parseUUID(c, "room_id", "ChatRoom")
	if err != nil {
		return err
	}
	page, err := parsePageQuery(c)
	if err != nil {
		return err
	}

	var messages []models.MessageView
	err = s.do(c, func(sc *service.Scope) error {
		messages, err = sc.Chats.Messages(c.UserContext(), uid, roomID, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, messages)
}

// GetHistory handles GET /chats/:room_id/history. Each call returns the next
// older page; requesting a chat token rewinds the cursor.
func (s *Server) GetHistory(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	roomID, err := parseUUID(c, "room_id", "ChatRoom")
	if err != nil {
		return err
	}

	var messages []models.MessageView
	err = s.do(c, func(sc *service.Scope) error {
		messages, err = sc.Chats.History(c.UserContext(), uid, roomID)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, messages)
}

// GetChatToken handles GET /chats/:room_id/token
func (s *Server) GetChatToken(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	roomID, err := parseUUID(c, "room_id", "ChatRoom")
	if err != nil {
		return err
	}

	var token *models.ChatToken
	err = s.do(c, func(sc *service.Scope) error {
		token, err = sc.Chats.ChatToken(c.UserContext(), uid, roomID)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(token)
}
