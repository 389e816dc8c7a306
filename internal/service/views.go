package service

import (
	"context"

	"murmur/internal/models"
)

func (m *MediaService) userLite(ctx context.Context, user *models.User) (*models.UserLite, error) {
	if user == nil {
		return nil, nil
	}
	avatar, err := m.AvatarURL(ctx, user)
	if err != nil {
		return nil, err
	}
	return &models.UserLite{ID: user.ID, Username: user.Username, AvatarURL: avatar}, nil
}

func (m *MediaService) userLites(ctx context.Context, users []models.User) ([]models.UserLite, error) {
	out := make([]models.UserLite, 0, len(users))
	for i := range users {
		lite, err := m.userLite(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *lite)
	}
	return out, nil
}

// postLite expects Owner, Images, Parent and Parent.Owner to be loaded.
func (m *MediaService) postLite(ctx context.Context, p *models.Post) (*models.PostLite, error) {
	owner, err := m.userLite(ctx, p.Owner)
	if err != nil {
		return nil, err
	}
	urls, err := m.PictureURLs(ctx, p.Images)
	if err != nil {
		return nil, err
	}
	lite := &models.PostLite{
		ID:          p.ID,
		Title:       p.Title,
		Published:   p.PublishedAt,
		IsReply:     p.IsReply,
		Owner:       owner,
		PictureURLs: urls,
	}
	if p.Parent != nil {
		parentOwner, err := m.userLite(ctx, p.Parent.Owner)
		if err != nil {
			return nil, err
		}
		lite.ParentPost = &models.ParentPostLite{ID: p.Parent.ID, Title: p.Parent.Title, Owner: parentOwner}
	}
	return lite, nil
}

func (m *MediaService) postLites(ctx context.Context, posts []models.Post) ([]models.PostLite, error) {
	out := make([]models.PostLite, 0, len(posts))
	for i := range posts {
		lite, err := m.postLite(ctx, &posts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *lite)
	}
	return out, nil
}

// orderByIDs returns posts in the order of ids, skipping ids not found.
func orderByIDs(posts []models.Post, ids []string) []models.Post {
	byID := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	out := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
