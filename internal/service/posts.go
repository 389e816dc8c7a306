package service

import (
	"context"

	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"
	"murmur/internal/vectorindex"
)

// PostService owns the post lifecycle and keeps the vector index mirror
// in step on a best-effort basis.
type PostService struct {
	posts    repository.PostRepository
	actions  repository.ActionRepository
	recorder *ActionRecorder
	media    *MediaService
	index    vectorindex.Index
	rules    validation.Rules
	cfg      *config.Config
}

// Create publishes a post. A reply records a reply action on its parent.
func (s *PostService) Create(ctx context.Context, userID string, req validation.CreatePostRequest) (*models.Post, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.rules.Title(req.Title); err != nil {
		return nil, err
	}
	if err := s.rules.Text(req.Text); err != nil {
		return nil, err
	}

	post := &models.Post{OwnerID: &userID, Title: req.Title, Text: req.Text}
	if req.ParentPostID != nil {
		if _, err := s.posts.GetByID(ctx, *req.ParentPostID); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil, models.NewInvalidActionError("parent post does not exist")
			}
			return nil, err
		}
		post.ParentPostID = req.ParentPostID
		post.IsReply = true
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if post.IsReply {
		if _, err := s.recorder.Record(ctx, models.ActionReply, userID, *post.ParentPostID); err != nil {
			return nil, err
		}
		return post, nil
	}
	bestEffort(ctx, "index upsert", s.index.Upsert(ctx, []models.Post{*post}))
	return post, nil
}

// Get returns the full view and records a view by userID.
func (s *PostService) Get(ctx context.Context, userID, postID string) (*models.PostFull, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	granted, err := s.recorder.Record(ctx, models.ActionView, userID, postID)
	if err != nil {
		return nil, err
	}
	post.PopularityRate += granted

	full, err := s.full(ctx, post)
	if err != nil {
		return nil, err
	}
	if full.Liked, err = s.actions.HasAction(ctx, userID, postID, models.ActionLike); err != nil {
		return nil, err
	}
	if full.Reposted, err = s.actions.HasAction(ctx, userID, postID, models.ActionRepost); err != nil {
		return nil, err
	}
	if full.LikeCount, err = s.posts.LikeCount(ctx, postID); err != nil {
		return nil, err
	}
	return full, nil
}

func (s *PostService) full(ctx context.Context, post *models.Post) (*models.PostFull, error) {
	lite, err := s.media.postLite(ctx, post)
	if err != nil {
		return nil, err
	}
	return &models.PostFull{
		PostLite:       *lite,
		Text:           post.Text,
		LastUpdated:    post.LastUpdatedAt,
		PopularityRate: post.PopularityRate,
		LikeCount:      post.LikeCount,
	}, nil
}

// Replies pages a post's children.
func (s *PostService) Replies(ctx context.Context, postID string, page int) ([]models.PostFull, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	replies, err := s.posts.GetReplies(ctx, postID, page, s.cfg.SmallPagination)
	if err != nil {
		return nil, err
	}
	out := make([]models.PostFull, 0, len(replies))
	for i := range replies {
		full, err := s.full(ctx, &replies[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *full)
	}
	return out, nil
}

// Following pages posts of followed users, most popular first.
func (s *PostService) Following(ctx context.Context, userID string, page int) ([]models.PostLite, error) {
	ids, err := s.posts.GetFollowedPosts(ctx, userID, nil, page, s.cfg.BasePagination)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.media.postLites(ctx, orderByIDs(posts, ids))
}

// UserPosts pages the posts of one author, newest first.
func (s *PostService) UserPosts(ctx context.Context, authorID string, page int) ([]models.PostLite, error) {
	posts, err := s.posts.GetUserPosts(ctx, authorID, page, s.cfg.SmallPagination)
	if err != nil {
		return nil, err
	}
	return s.media.postLites(ctx, posts)
}

func (s *PostService) owned(ctx context.Context, userID, postID string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsOwnedBy(userID) {
		return nil, models.NewInvalidActionError("only the owner can change this post")
	}
	return post, nil
}

// Update applies the fields present in req.
func (s *PostService) Update(ctx context.Context, userID, postID string, req validation.UpdatePostRequest) (*models.PostFull, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}
	if req.Title != nil {
		if err := s.rules.Title(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Text != nil {
		if err := s.rules.Text(*req.Text); err != nil {
			return nil, err
		}
	}
	updated, err := s.posts.UpdateFields(ctx, postID, repository.PostUpdate{Title: req.Title, Text: req.Text})
	if err != nil {
		return nil, err
	}
	if !updated.IsReply {
		bestEffort(ctx, "index upsert", s.index.Upsert(ctx, []models.Post{*updated}))
	}
	return s.full(ctx, updated)
}

// Delete removes a post with its replies, actions and images.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return err
	}
	deleted, err := s.posts.Delete(ctx, postID)
	if err != nil {
		return err
	}
	s.media.DeletePostImages(ctx, deleted.ImageNames)
	bestEffort(ctx, "index delete", s.index.Delete(ctx, deleted.PostIDs))
	return nil
}

// React records a like or repost; Unreact removes it.
func (s *PostService) React(ctx context.Context, kind models.ActionKind, userID, postID string) error {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return err
	}
	_, err := s.recorder.Record(ctx, kind, userID, postID)
	return err
}

func (s *PostService) Unreact(ctx context.Context, kind models.ActionKind, userID, postID string) error {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return err
	}
	_, err := s.recorder.Remove(ctx, kind, userID, postID)
	return err
}

// Reindex rebuilds the vector collection from the relational store in
// batches and returns how many posts were indexed.
func (s *PostService) Reindex(ctx context.Context, batch int) (int, error) {
	if err := s.index.Reset(ctx); err != nil {
		return 0, err
	}
	total, after := 0, ""
	for {
		posts, err := s.posts.ListForIndex(ctx, after, batch)
		if err != nil {
			return total, err
		}
		if len(posts) == 0 {
			return total, nil
		}
		if err := s.index.Upsert(ctx, posts); err != nil {
			return total, err
		}
		total += len(posts)
		after = posts[len(posts)-1].ID
	}
}
