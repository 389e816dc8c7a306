package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRoom is a dialogue between two users or a group.
type ChatRoom struct {
	ID             string     `gorm:"column:room_id;type:varchar(36);primaryKey" json:"room_id"`
	IsGroup        bool       `gorm:"column:is_group;not null;default:false" json:"is_group"`
	Name           string     `gorm:"column:name;size:128" json:"name,omitempty"`
	Approved       bool       `gorm:"column:approved;not null;default:false" json:"approved"`
	InitiatorID    *string    `gorm:"column:initiator_id;type:varchar(36)" json:"initiator_id,omitempty"`
	DialogueKey    *string    `gorm:"column:dialogue_key;size:80;uniqueIndex" json:"-"`
	ApprovalSentAt *time.Time `gorm:"column:approval_sent_ts" json:"approval_sent,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_ts;autoCreateTime" json:"created"`
	LastMessageAt  time.Time  `gorm:"column:last_message_time;index" json:"last_message_time"`

	Participants []ChatParticipant `gorm:"foreignKey:RoomID;references:ID" json:"participants,omitempty"`
}

// TableName specifies the table name for GORM
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// BeforeCreate assigns a uuid when none is set.
func (r *ChatRoom) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.LastMessageAt.IsZero() {
		r.LastMessageAt = time.Now()
	}
	return nil
}

// HasParticipant reports whether userID is in the room.
func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// DialogueKeyFor builds the order-agnostic key of a user pair.
func DialogueKeyFor(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// ChatParticipant links a user to a room.
type ChatParticipant struct {
	RoomID   string    `gorm:"column:room_id;type:varchar(36);primaryKey" json:"room_id"`
	UserID   string    `gorm:"column:user_id;type:varchar(36);primaryKey;index" json:"user_id"`
	JoinedAt time.Time `gorm:"column:joined_ts;autoCreateTime" json:"joined"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

// TableName specifies the table name for GORM
func (ChatParticipant) TableName() string {
	return "chat_participants"
}

// Message is one chat message.
type Message struct {
	ID            string    `gorm:"column:message_id;type:varchar(36);primaryKey" json:"message_id"`
	RoomID        string    `gorm:"column:room_id;type:varchar(36);not null;index" json:"room_id"`
	OwnerID       *string   `gorm:"column:owner_id;type:varchar(36);index" json:"owner_id"`
	Text          string    `gorm:"column:text;type:text;not null" json:"text"`
	SentAt        time.Time `gorm:"column:sent_ts;autoCreateTime;index" json:"sent"`
	LastUpdatedAt time.Time `gorm:"column:last_updated_ts;autoUpdateTime" json:"last_updated"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a uuid when none is set.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
