package service

import (
	"context"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"github.com/samber/lo"
)

// ChatService manages rooms and the message lifecycle behind the chat socket.
type ChatService struct {
	chats repository.ChatRepository
	users repository.UserRepository
	auth  *AuthService
	store *cache.Store
	media *MediaService
	rules validation.Rules
	cfg   *config.Config
}

func (s *ChatService) view(ctx context.Context, room *models.ChatRoom) (*models.ChatRoomView, error) {
	users := make([]models.User, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.User != nil {
			users = append(users, *p.User)
		}
	}
	participants, err := s.media.userLites(ctx, users)
	if err != nil {
		return nil, err
	}
	return &models.ChatRoomView{
		ID:            room.ID,
		IsGroup:       room.IsGroup,
		Name:          room.Name,
		Approved:      room.Approved,
		LastMessageAt: room.LastMessageAt,
		Participants:  participants,
	}, nil
}

// member loads the room and checks userID takes part in it.
func (s *ChatService) member(ctx context.Context, userID, roomID string) (*models.ChatRoom, error) {
	room, err := s.chats.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, models.NewInvalidActionError("not a participant of this room")
	}
	return room, nil
}

// OpenDialogue returns the dialogue between the two users, requesting one
// when none exists. The other user has to approve it.
func (s *ChatService) OpenDialogue(ctx context.Context, initiatorID, otherID string) (*models.ChatRoomView, error) {
	if initiatorID == otherID {
		return nil, models.NewInvalidActionError("cannot open a dialogue with yourself")
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		return nil, err
	}

	existing, err := s.chats.GetDialogue(ctx, initiatorID, otherID)
	switch {
	case err == nil:
		return s.reload(ctx, existing.ID)
	case !models.IsCode(err, models.CodeNotFound):
		return nil, err
	}

	now := time.Now()
	key := models.DialogueKeyFor(initiatorID, otherID)
	room := &models.ChatRoom{
		InitiatorID:    &initiatorID,
		DialogueKey:    &key,
		ApprovalSentAt: &now,
		LastMessageAt:  now,
	}
	if err := s.chats.CreateRoom(ctx, room, []string{initiatorID, otherID}); err != nil {
		return nil, err
	}
	return s.reload(ctx, room.ID)
}

func (s *ChatService) reload(ctx context.Context, roomID string) (*models.ChatRoomView, error) {
	room, err := s.chats.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, room)
}

// CreateGroup creates an approved group with the owner and the listed users.
func (s *ChatService) CreateGroup(ctx context.Context, ownerID string, req validation.CreateGroupRequest) (*models.ChatRoomView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ids := lo.Uniq(append([]string{ownerID}, req.UserIDs...))
	if len(ids) < 2 {
		return nil, models.NewInvalidActionError("a group needs at least one other user")
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		found := lo.Map(users, func(u models.User, _ int) string { return u.ID })
		missing, _ := lo.Difference(ids, found)
		return nil, models.NewNotFoundError("User", missing[0])
	}

	room := &models.ChatRoom{
		IsGroup:     true,
		Name:        req.Name,
		Approved:    true,
		InitiatorID: &ownerID,
	}
	if err := s.chats.CreateRoom(ctx, room, ids); err != nil {
		return nil, err
	}
	return s.reload(ctx, room.ID)
}

// Approve accepts a dialogue request. Only the invited user may approve.
func (s *ChatService) Approve(ctx context.Context, userID, roomID string) error {
	room, err := s.member(ctx, userID, roomID)
	if err != nil {
		return err
	}
	switch {
	case room.IsGroup || room.Approved:
		return models.NewInvalidActionError("room is already approved")
	case room.InitiatorID != nil && *room.InitiatorID == userID:
		return models.NewInvalidActionError("the initiator cannot approve a dialogue")
	}
	return s.chats.ApproveRoom(ctx, roomID, time.Now())
}

// Rooms lists the user's rooms, most recently active first.
func (s *ChatService) Rooms(ctx context.Context, userID string, page int) ([]models.ChatRoomView, error) {
	rooms, err := s.chats.ListRooms(ctx, userID, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatRoomView, 0, len(rooms))
	for i := range rooms {
		v, err := s.view(ctx, &rooms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Messages pages a room's messages, newest first.
func (s *ChatService) Messages(ctx context.Context, userID, roomID string, page int) ([]models.MessageView, error) {
	if _, err := s.member(ctx, userID, roomID); err != nil {
		return nil, err
	}
	messages, err := s.chats.GetMessages(ctx, roomID, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m models.Message, _ int) models.MessageView {
		return models.NewMessageView(&m)
	}), nil
}

// History serves the next page of the user's history cursor. The cursor is
// rewound whenever a chat token is minted.
func (s *ChatService) History(ctx context.Context, userID, roomID string) ([]models.MessageView, error) {
	if _, err := s.member(ctx, userID, roomID); err != nil {
		return nil, err
	}
	page, err := s.store.NextChatPage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Messages(ctx, userID, roomID, page)
}

// ChatToken mints the one-time capability that opens the room's socket.
func (s *ChatService) ChatToken(ctx context.Context, userID, roomID string) (*models.ChatToken, error) {
	room, err := s.member(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Approved {
		return nil, models.NewInvalidActionError("dialogue is waiting for approval")
	}
	token, exp, err := s.auth.ChatToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ResetChatPagination(ctx, userID); err != nil {
		return nil, err
	}
	return &models.ChatToken{Token: token, RoomID: roomID, ExpiresAt: exp}, nil
}

// Join consumes a chat token and returns its owner once they are known to
// take part in roomID.
func (s *ChatService) Join(ctx context.Context, token, roomID string) (string, error) {
	userID, err := s.auth.ConsumeChatToken(ctx, token)
	if err != nil {
		return "", err
	}
	room, err := s.member(ctx, userID, roomID)
	if err != nil {
		return "", err
	}
	if !room.Approved {
		return "", models.NewInvalidActionError("dialogue is waiting for approval")
	}
	return userID, nil
}

// Apply runs one client frame and returns the message to fan out.
func (s *ChatService) Apply(ctx context.Context, userID, roomID string, frame validation.ChatFrame) (*models.MessageView, error) {
	if err := validation.Struct(frame); err != nil {
		return nil, err
	}
	switch frame.Action {
	case "send":
		return s.Send(ctx, userID, roomID, frame.Message)
	case "change":
		return s.Edit(ctx, userID, roomID, frame.MessageID, frame.Message)
	default:
		return s.DeleteMessage(ctx, userID, roomID, frame.MessageID)
	}
}

// Send stores a new message and bumps the room's activity time.
func (s *ChatService) Send(ctx context.Context, userID, roomID, text string) (*models.MessageView, error) {
	if err := s.rules.Message(text); err != nil {
		return nil, err
	}
	msg := &models.Message{RoomID: roomID, OwnerID: &userID, Text: text}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chats.TouchRoom(ctx, roomID, msg.SentAt); err != nil {
		return nil, err
	}
	view := models.NewMessageView(msg)
	return &view, nil
}

func (s *ChatService) ownMessage(ctx context.Context, userID, roomID, messageID string) (*models.Message, error) {
	msg, err := s.chats.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RoomID != roomID {
		return nil, models.NewNotFoundError("Message", messageID)
	}
	if msg.OwnerID == nil || *msg.OwnerID != userID {
		return nil, models.NewInvalidActionError("only the author can change this message")
	}
	return msg, nil
}

// Edit replaces the text of the user's own message.
func (s *ChatService) Edit(ctx context.Context, userID, roomID, messageID, text string) (*models.MessageView, error) {
	if _, err := s.ownMessage(ctx, userID, roomID, messageID); err != nil {
		return nil, err
	}
	if err := s.rules.Message(text); err != nil {
		return nil, err
	}
	msg, err := s.chats.UpdateMessageText(ctx, messageID, text)
	if err != nil {
		return nil, err
	}
	view := models.NewMessageView(msg)
	return &view, nil
}

// DeleteMessage removes the user's own message and returns what was removed.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, roomID, messageID string) (*models.MessageView, error) {
	msg, err := s.ownMessage(ctx, userID, roomID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.chats.DeleteMessage(ctx, messageID); err != nil {
		return nil, err
	}
	view := models.NewMessageView(msg)
	return &view, nil
}
