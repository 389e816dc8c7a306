package service

import (
	"context"
	"strings"

	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/vectorindex"
)

// SearchService answers free-text queries over posts and usernames.
type SearchService struct {
	posts repository.PostRepository
	users repository.UserRepository
	index vectorindex.Index
	media *MediaService
	cfg   *config.Config
}

// Posts answers prompt with the page-th window of FEED_MAX_POSTS_LOAD closest
// hits, newest first within the window.
func (s *SearchService) Posts(ctx context.Context, prompt string, page int) ([]models.PostLite, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, models.NewValidationError("prompt is required")
	}
	n := s.cfg.FeedMaxPostsLoad
	matches, err := s.index.Search(ctx, prompt, (page+1)*n)
	if err != nil {
		return nil, err
	}
	if len(matches) <= page*n {
		return []models.PostLite{}, nil
	}
	ids := vectorindex.Extract(matches[page*n:], nil, n)
	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.media.postLites(ctx, orderByIDs(posts, ids))
}

// Users matches usernames containing prompt, case-insensitively.
func (s *SearchService) Users(ctx context.Context, prompt string, page int) ([]models.UserLite, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, models.NewValidationError("prompt is required")
	}
	users, err := s.users.SearchByUsername(ctx, prompt, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	return s.media.userLites(ctx, users)
}
