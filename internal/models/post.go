package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a short text publication, optionally a reply to another post.
type Post struct {
	ID                   string     `gorm:"column:post_id;type:varchar(36);primaryKey" json:"post_id"`
	OwnerID              *string    `gorm:"column:owner_id;type:varchar(36);index" json:"owner_id"`
	ParentPostID         *string    `gorm:"column:parent_post_id;type:varchar(36);index" json:"parent_post_id"`
	IsReply              bool       `gorm:"column:is_reply;not null;default:false" json:"is_reply"`
	Title                string     `gorm:"column:title;not null" json:"title"`
	Text                 string     `gorm:"column:text;type:text;not null" json:"text"`
	PublishedAt          time.Time  `gorm:"column:published_ts;autoCreateTime;index" json:"published"`
	LastUpdatedAt        time.Time  `gorm:"column:last_updated_ts;autoUpdateTime;index" json:"last_updated"`
	PopularityRate       int        `gorm:"column:popularity_rate;not null;default:0;index" json:"popularity_rate"`
	LastRateCalculatedAt *time.Time `gorm:"column:last_rate_calculated_ts" json:"last_rate_calculated"`

	Owner   *User        `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	Parent  *Post        `gorm:"foreignKey:ParentPostID;references:ID" json:"parent_post,omitempty"`
	Images  []PostImage  `gorm:"foreignKey:PostID;references:ID" json:"images,omitempty"`
	Actions []PostAction `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	// LikeCount is not persisted; computed at query time
	LikeCount int `gorm:"column:like_count;->;-:migration" json:"like_count"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a uuid when none is set.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsOwnedBy reports whether userID owns the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// PostImage is one stored image attached to a post.
type PostImage struct {
	ID        string `gorm:"column:image_id;type:varchar(36);primaryKey" json:"image_id"`
	PostID    string `gorm:"column:post_id;type:varchar(36);not null;index" json:"post_id"`
	ImageName string `gorm:"column:image_name;size:128;not null;uniqueIndex" json:"image_name"`
}

// TableName specifies the table name for GORM
func (PostImage) TableName() string {
	return "post_images"
}

// BeforeCreate assigns a uuid when none is set.
func (i *PostImage) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
