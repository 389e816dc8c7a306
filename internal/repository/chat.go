package repository

import (
	"context"
	"time"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines the interface for chat rooms and messages.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom, participantIDs []string) error
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetDialogue(ctx context.Context, userA, userB string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, userID string, page, n int) ([]models.ChatRoom, error)
	ApproveRoom(ctx context.Context, roomID string, at time.Time) error
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	UpdateMessageText(ctx context.Context, messageID, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	GetMessages(ctx context.Context, roomID string, page, n int) ([]models.Message, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository instance
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom, participantIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		participants := make([]models.ChatParticipant, len(participantIDs))
		for i, id := range participantIDs {
			participants[i] = models.ChatParticipant{RoomID: room.ID, UserID: id}
		}
		if len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}
		room.Participants = participants
		return nil
	})
	return storeErr("create room", err)
}

func (r *chatRepository) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).Preload("Participants").Preload("Participants.User").
		First(&room, "room_id = ?", roomID).Error
	if err != nil {
		return nil, notFoundOr("get room", "ChatRoom", roomID, err)
	}
	return &room, nil
}

func (r *chatRepository) GetDialogue(ctx context.Context, userA, userB string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).Preload("Participants").
		First(&room, "dialogue_key = ?", models.DialogueKeyFor(userA, userB)).Error
	if err != nil {
		return nil, notFoundOr("get dialogue", "ChatRoom", models.DialogueKeyFor(userA, userB), err)
	}
	return &room, nil
}

func (r *chatRepository) ListRooms(ctx context.Context, userID string, page, n int) ([]models.ChatRoom, error) {
	rooms := []models.ChatRoom{}
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.room_id = chat_rooms.room_id").
		Where("chat_participants.user_id = ?", userID).
		Order("chat_rooms.last_message_time DESC").
		Scopes(paginate(page, n)).
		Preload("Participants").Preload("Participants.User").
		Find(&rooms).Error
	return rooms, storeErr("list rooms", err)
}

func (r *chatRepository) ApproveRoom(ctx context.Context, roomID string, at time.Time) error {
	return r.updateRoom(ctx, roomID, map[string]interface{}{"approved": true, "last_message_time": at})
}

func (r *chatRepository) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	return r.updateRoom(ctx, roomID, map[string]interface{}{"last_message_time": at})
}

func (r *chatRepository) updateRoom(ctx context.Context, roomID string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.ChatRoom{}).Where("room_id = ?", roomID).Updates(fields)
	if res.Error != nil {
		return storeErr("update room", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("ChatRoom", roomID)
	}
	return nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, storeErr("check participant", err)
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return storeErr("create message", r.db.WithContext(ctx).Create(msg).Error)
}

func (r *chatRepository) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "message_id = ?", messageID).Error; err != nil {
		return nil, notFoundOr("get message", "Message", messageID, err)
	}
	return &msg, nil
}

func (r *chatRepository) UpdateMessageText(ctx context.Context, messageID, text string) (*models.Message, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).Where("message_id = ?", messageID).Update("text", text)
	if res.Error != nil {
		return nil, storeErr("update message", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Message", messageID)
	}
	return r.GetMessage(ctx, messageID)
}

func (r *chatRepository) DeleteMessage(ctx context.Context, messageID string) error {
	res := r.db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&models.Message{})
	if res.Error != nil {
		return storeErr("delete message", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Message", messageID)
	}
	return nil
}

// GetMessages pages a room's history newest first.
func (r *chatRepository) GetMessages(ctx context.Context, roomID string, page, n int) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_ts DESC, message_id").
		Scopes(paginate(page, n)).
		Find(&messages).Error
	return messages, storeErr("get messages", err)
}
