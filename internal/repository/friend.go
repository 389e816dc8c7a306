package repository

import (
	"context"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// FriendRepository manages the follower -> followed association.
type FriendRepository interface {
	Follow(ctx context.Context, followerID, followedID string) error
	Unfollow(ctx context.Context, followerID, followedID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	GetFollowed(ctx context.Context, userID string, page, n int) ([]models.User, error)
	GetFollowers(ctx context.Context, userID string, page, n int) ([]models.User, error)
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository instance
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) Follow(ctx context.Context, followerID, followedID string) error {
	f := models.Friendship{FollowerID: followerID, FollowedID: followedID}
	return storeErr("follow", r.db.WithContext(ctx).Create(&f).Error)
}

func (r *friendRepository) Unfollow(ctx context.Context, followerID, followedID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return false, storeErr("unfollow", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *friendRepository) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	return count > 0, storeErr("check follow", err)
}

func (r *friendRepository) GetFollowed(ctx context.Context, userID string, page, n int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.followed_id = users.user_id").
		Where("friendships.follower_id = ?", userID).
		Order("friendships.created_ts DESC").
		Scopes(paginate(page, n)).
		Find(&users).Error
	return users, storeErr("get followed", err)
}

func (r *friendRepository) GetFollowers(ctx context.Context, userID string, page, n int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.follower_id = users.user_id").
		Where("friendships.followed_id = ?", userID).
		Order("friendships.created_ts DESC").
		Scopes(paginate(page, n)).
		Find(&users).Error
	return users, storeErr("get followers", err)
}
