// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account.
type User struct {
	ID              string    `gorm:"column:user_id;type:varchar(36);primaryKey" json:"user_id"`
	Username        string    `gorm:"column:username;size:64;uniqueIndex;not null" json:"username"`
	Email           string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	PasswordHash    string    `gorm:"column:password_hash;not null" json:"-"`
	JoinedAt        time.Time `gorm:"column:joined_ts;autoCreateTime" json:"joined"`
	AvatarImageName *string   `gorm:"column:avatar_image_name;size:128" json:"-"`

	// Populated only by the loaders that ask for them.
	Followed  []User `gorm:"-" json:"-"`
	Followers []User `gorm:"-" json:"-"`
	Posts     []Post `gorm:"-" json:"-"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a uuid when none is set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Friendship is the follower -> followed association.
type Friendship struct {
	FollowerID string    `gorm:"column:follower_id;type:varchar(36);primaryKey" json:"follower_id"`
	FollowedID string    `gorm:"column:followed_id;type:varchar(36);primaryKey;index" json:"followed_id"`
	CreatedAt  time.Time `gorm:"column:created_ts;autoCreateTime" json:"created"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}
