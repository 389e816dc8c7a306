package service

import (
	"context"

	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
)

// FollowService manages the follow graph.
type FollowService struct {
	friends repository.FriendRepository
	users   repository.UserRepository
	media   *MediaService
	cfg     *config.Config
}

// Follow makes followerID follow followedID.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return models.NewInvalidActionError("users cannot follow themselves")
	}
	if _, err := s.users.GetByID(ctx, followedID); err != nil {
		return err
	}
	following, err := s.friends.IsFollowing(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if following {
		return models.NewCollisionError("already following this user")
	}
	return s.friends.Follow(ctx, followerID, followedID)
}

// Unfollow removes the edge. Unfollowing a user not followed is invalid.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return models.NewInvalidActionError("users cannot unfollow themselves")
	}
	if _, err := s.users.GetByID(ctx, followedID); err != nil {
		return err
	}
	removed, err := s.friends.Unfollow(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewInvalidActionError("not following this user")
	}
	return nil
}

// Followers pages the users following userID.
func (s *FollowService) Followers(ctx context.Context, userID string, page int) ([]models.UserLite, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.friends.GetFollowers(ctx, userID, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	return s.media.userLites(ctx, users)
}

// Followed pages the users userID follows.
func (s *FollowService) Followed(ctx context.Context, userID string, page int) ([]models.UserLite, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.friends.GetFollowed(ctx, userID, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	return s.media.userLites(ctx, users)
}
