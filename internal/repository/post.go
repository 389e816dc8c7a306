package repository

import (
	"context"
	"time"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// PostUpdate is a partial post update. Nil fields are left untouched.
type PostUpdate struct {
	Title *string
	Text  *string
}

func (u PostUpdate) fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Text != nil {
		fields["text"] = *u.Text
	}
	return fields
}

// DeletedPosts reports what a cascading post delete removed.
type DeletedPosts struct {
	PostIDs    []string
	ImageNames []string
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Post, error)
	UpdateFields(ctx context.Context, id string, update PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, id string) (*DeletedPosts, error)
	GetFreshPosts(ctx context.Context, userID string, exclude []string, page, n int) ([]string, error)
	GetFollowedPosts(ctx context.Context, userID string, exclude []string, page, n int) ([]string, error)
	GetReplies(ctx context.Context, postID string, page, n int) ([]models.Post, error)
	GetUserPosts(ctx context.Context, userID string, page, n int) ([]models.Post, error)
	AddPopularity(ctx context.Context, id string, delta int) error
	SetPopularity(ctx context.Context, id string, rate int, calculatedAt time.Time) error
	GetStalePostIDs(ctx context.Context, updatedBefore time.Time) ([]string, error)
	ListForIndex(ctx context.Context, afterID string, n int) ([]models.Post, error)
	LikeCount(ctx context.Context, id string) (int, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withRelations eager-loads what every post view needs.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Owner").Preload("Images").Preload("Parent").Preload("Parent.Owner")
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return storeErr("create post", r.db.WithContext(ctx).Create(post).Error)
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Scopes(withRelations).First(&post, "post_id = ?", id).Error; err != nil {
		return nil, notFoundOr("get post", "Post", id, err)
	}
	return &post, nil
}

// GetByIDs returns the posts found, in no particular order.
func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	posts := []models.Post{}
	if len(ids) == 0 {
		return posts, nil
	}
	err := r.db.WithContext(ctx).Scopes(withRelations).Where("post_id IN ?", ids).Find(&posts).Error
	return posts, storeErr("get posts", err)
}

// UpdateFields applies a partial update; last_updated_ts is bumped by GORM.
func (r *postRepository) UpdateFields(ctx context.Context, id string, update PostUpdate) (*models.Post, error) {
	fields := update.fields()
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, storeErr("update post", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, models.NewNotFoundError("Post", id)
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes the post with its reply tree, actions and image rows.
func (r *postRepository) Delete(ctx context.Context, id string) (*DeletedPosts, error) {
	out := &DeletedPosts{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("post_id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Post", id)
		}

		ids := []string{id}
		frontier := []string{id}
		for len(frontier) > 0 {
			var children []string
			if err := tx.Model(&models.Post{}).Where("parent_post_id IN ?", frontier).Pluck("post_id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}

		if err := tx.Model(&models.PostImage{}).Where("post_id IN ?", ids).Pluck("image_name", &out.ImageNames).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.PostAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.PostImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		out.PostIDs = ids
		return nil
	})
	if err != nil {
		return nil, storeErr("delete post", err)
	}
	return out, nil
}

func excluding(db *gorm.DB, exclude []string) *gorm.DB {
	if len(exclude) > 0 {
		return db.Where("posts.post_id NOT IN ?", exclude)
	}
	return db
}

// GetFreshPosts returns ids of posts by anyone but userID, most popular first.
func (r *postRepository) GetFreshPosts(ctx context.Context, userID string, exclude []string, page, n int) ([]string, error) {
	ids := []string{}
	q := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("(posts.owner_id IS NULL OR posts.owner_id <> ?)", userID)
	err := excluding(q, exclude).
		Order("posts.popularity_rate DESC, posts.published_ts DESC, posts.post_id").
		Scopes(paginate(page, n)).
		Pluck("posts.post_id", &ids).Error
	return ids, storeErr("get fresh posts", err)
}

// GetFollowedPosts returns ids of posts by users userID follows. The follow
// set is read at query time, never from a cached relationship graph.
func (r *postRepository) GetFollowedPosts(ctx context.Context, userID string, exclude []string, page, n int) ([]string, error) {
	ids := []string{}
	db := r.db.WithContext(ctx)
	followed := db.Model(&models.Friendship{}).Select("followed_id").Where("follower_id = ?", userID)
	q := db.Model(&models.Post{}).Where("posts.owner_id IN (?)", followed)
	err := excluding(q, exclude).
		Order("posts.popularity_rate DESC, posts.published_ts DESC, posts.post_id").
		Scopes(paginate(page, n)).
		Pluck("posts.post_id", &ids).Error
	return ids, storeErr("get followed posts", err)
}

// GetReplies orders children by recency, then popularity, then likes.
func (r *postRepository) GetReplies(ctx context.Context, postID string, page, n int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.*, (SELECT COUNT(*) FROM post_actions WHERE post_actions.post_id = posts.post_id AND post_actions.action = ?) AS like_count", models.ActionLike).
		Where("posts.parent_post_id = ?", postID).
		Order("posts.published_ts DESC, posts.popularity_rate DESC, like_count DESC").
		Scopes(paginate(page, n), withRelations).
		Find(&posts).Error
	return posts, storeErr("get replies", err)
}

func (r *postRepository) GetUserPosts(ctx context.Context, userID string, page, n int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("published_ts DESC").
		Scopes(paginate(page, n), withRelations).
		Find(&posts).Error
	return posts, storeErr("get user posts", err)
}

// AddPopularity shifts the rate by delta, never below zero.
func (r *postRepository) AddPopularity(ctx context.Context, id string, delta int) error {
	if delta == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", id).
		Update("popularity_rate", gorm.Expr("CASE WHEN popularity_rate + ? < 0 THEN 0 ELSE popularity_rate + ? END", delta, delta))
	if res.Error != nil {
		return storeErr("update popularity", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// SetPopularity overwrites the rate without touching last_updated_ts.
func (r *postRepository) SetPopularity(ctx context.Context, id string, rate int, calculatedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", id).
		UpdateColumns(map[string]interface{}{
			"popularity_rate":         rate,
			"last_rate_calculated_ts": calculatedAt,
		}).Error
	return storeErr("set popularity", err)
}

func (r *postRepository) GetStalePostIDs(ctx context.Context, updatedBefore time.Time) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("last_updated_ts < ?", updatedBefore).
		Order("post_id").
		Pluck("post_id", &ids).Error
	return ids, storeErr("get stale posts", err)
}

// ListForIndex pages through non-reply posts by id for index rebuilds.
func (r *postRepository) ListForIndex(ctx context.Context, afterID string, n int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Where("is_reply = ? AND post_id > ?", false, afterID).
		Order("post_id").
		Limit(n).
		Find(&posts).Error
	return posts, storeErr("list posts for index", err)
}

func (r *postRepository) LikeCount(ctx context.Context, id string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostAction{}).
		Where("post_id = ? AND action = ?", id, models.ActionLike).
		Count(&count).Error
	return int(count), storeErr("count likes", err)
}
