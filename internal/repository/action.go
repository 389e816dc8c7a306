package repository

import (
	"context"
	"time"

	"murmur/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ActionRepository is the append-mostly ledger of post actions.
type ActionRepository interface {
	Create(ctx context.Context, action *models.PostAction) error
	Delete(ctx context.Context, actionID uint) error
	GetActions(ctx context.Context, userID, postID string, kind models.ActionKind) ([]models.PostAction, error)
	GetUserActions(ctx context.Context, userID string, kind models.ActionKind, limit int, withPosts bool) ([]models.PostAction, error)
	HasAction(ctx context.Context, userID, postID string, kind models.ActionKind) (bool, error)
	CountSince(ctx context.Context, postIDs []string, since time.Time) (map[string]map[models.ActionKind]int, error)
}

type actionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates a new action repository instance
func NewActionRepository(db *gorm.DB) ActionRepository {
	return &actionRepository{db: db}
}

func (r *actionRepository) Create(ctx context.Context, action *models.PostAction) error {
	return storeErr("create action", r.db.WithContext(ctx).Create(action).Error)
}

func (r *actionRepository) Delete(ctx context.Context, actionID uint) error {
	res := r.db.WithContext(ctx).Where("action_id = ?", actionID).Delete(&models.PostAction{})
	if res.Error != nil {
		return storeErr("delete action", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("PostAction", actionID)
	}
	return nil
}

// GetActions returns every matching action, newest first.
func (r *actionRepository) GetActions(ctx context.Context, userID, postID string, kind models.ActionKind) ([]models.PostAction, error) {
	actions := []models.PostAction{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND post_id = ? AND action = ?", userID, postID, kind).
		Order("date DESC, action_id DESC").
		Find(&actions).Error
	return actions, storeErr("get actions", err)
}

// GetUserActions returns the newest limit actions of a kind. A limit <= 0
// returns them all.
func (r *actionRepository) GetUserActions(ctx context.Context, userID string, kind models.ActionKind, limit int, withPosts bool) ([]models.PostAction, error) {
	actions := []models.PostAction{}
	q := r.db.WithContext(ctx).
		Where("owner_id = ? AND action = ?", userID, kind).
		Order("date DESC, action_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&actions).Error; err != nil {
		return actions, storeErr("get user actions", err)
	}
	if !withPosts || len(actions) == 0 {
		return actions, nil
	}

	ids := lo.Uniq(lo.Map(actions, func(a models.PostAction, _ int) string { return a.PostID }))
	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("post_id IN ?", ids).Find(&posts).Error; err != nil {
		return actions, storeErr("get action posts", err)
	}
	byID := lo.KeyBy(posts, func(p models.Post) string { return p.ID })
	for i := range actions {
		if p, ok := byID[actions[i].PostID]; ok {
			actions[i].Post = &p
		}
	}
	return actions, nil
}

func (r *actionRepository) HasAction(ctx context.Context, userID, postID string, kind models.ActionKind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostAction{}).
		Where("owner_id = ? AND post_id = ? AND action = ?", userID, postID, kind).
		Count(&count).Error
	return count > 0, storeErr("check action", err)
}

type actionCount struct {
	PostID string
	Action models.ActionKind
	Total  int
}

// CountSince groups actions dated after since by post and kind.
func (r *actionRepository) CountSince(ctx context.Context, postIDs []string, since time.Time) (map[string]map[models.ActionKind]int, error) {
	out := make(map[string]map[models.ActionKind]int, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []actionCount
	err := r.db.WithContext(ctx).Model(&models.PostAction{}).
		Select("post_id, action, COUNT(*) AS total").
		Where("post_id IN ? AND date > ?", postIDs, since).
		Group("post_id, action").
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("count actions", err)
	}
	for _, row := range rows {
		if out[row.PostID] == nil {
			out[row.PostID] = map[models.ActionKind]int{}
		}
		out[row.PostID][row.Action] = row.Total
	}
	return out, nil
}
