package models

import (
	"fmt"
	"math"
	"time"
)

// ActionKind is the closed set of interactions a user can have with a post.
type ActionKind string

const (
	ActionView   ActionKind = "view"
	ActionLike   ActionKind = "like"
	ActionReply  ActionKind = "reply"
	ActionRepost ActionKind = "repost"
)

// ActionKinds lists every valid kind.
var ActionKinds = []ActionKind{ActionView, ActionLike, ActionReply, ActionRepost}

// ParseActionKind validates a raw kind.
func ParseActionKind(raw string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unknown action %q", raw))
}

// PostAction is one ledger entry. Views and replies may repeat; a user holds
// at most one like and one repost per post, enforced by idx_post_actions_single.
type PostAction struct {
	ID      uint       `gorm:"column:action_id;primaryKey;autoIncrement" json:"action_id"`
	OwnerID string     `gorm:"column:owner_id;type:varchar(36);not null;index:idx_post_actions_owner_post;uniqueIndex:idx_post_actions_single,priority:1" json:"owner_id"`
	PostID  string     `gorm:"column:post_id;type:varchar(36);not null;index:idx_post_actions_owner_post;index;uniqueIndex:idx_post_actions_single,priority:2" json:"post_id"`
	Action  ActionKind `gorm:"column:action;type:varchar(16);not null;index;uniqueIndex:idx_post_actions_single,priority:3,where:action <> 'view' AND action <> 'reply'" json:"action"`
	Date    time.Time  `gorm:"column:date;autoCreateTime;index" json:"date"`

	// Post is filled by ActionRepository when asked to. The relation itself is
	// declared on Post.Actions so the foreign key lands on post_actions.
	Post *Post `gorm:"-" json:"post,omitempty"`
}

// TableName specifies the table name for GORM
func (PostAction) TableName() string {
	return "post_actions"
}

// CostTable holds the popularity cost of each action kind.
type CostTable struct {
	View   int
	Like   int
	Reply  int
	Repost int

	// ReplyDevaluation multiplies the reply cost once per prior reply.
	ReplyDevaluation float64
	// MaxRepliesWithRate is the number of prior replies after which replies stop counting.
	MaxRepliesWithRate int
}

// Base returns the undevalued cost of kind.
func (t CostTable) Base(kind ActionKind) int {
	switch kind {
	case ActionView:
		return t.View
	case ActionLike:
		return t.Like
	case ActionReply:
		return t.Reply
	case ActionRepost:
		return t.Repost
	default:
		return 0
	}
}

// Cost returns the cost of a new action given how many of the same kind the
// user already left on the post.
func (t CostTable) Cost(kind ActionKind, priorCount int) int {
	if kind != ActionReply {
		return t.Base(kind)
	}
	if priorCount >= t.MaxRepliesWithRate {
		return 0
	}
	return int(math.Round(float64(t.Reply) * math.Pow(t.ReplyDevaluation, float64(priorCount))))
}
