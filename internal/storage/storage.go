// Package storage holds image bytes behind one interface, either on the
// local filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"

	"murmur/internal/config"
)

// ErrNotFound is returned by Get for unknown object names.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore stores opaque objects by name.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, names ...string) error
}

// Media groups the post image and avatar stores.
type Media struct {
	Posts ObjectStore
	Users ObjectStore
}

// New builds the configured stores.
func New(ctx context.Context, cfg *config.Config) (*Media, error) {
	if !cfg.UseS3 {
		posts, err := NewLocalStore(cfg.MediaPostsPath)
		if err != nil {
			return nil, err
		}
		users, err := NewLocalStore(cfg.MediaUsersPath)
		if err != nil {
			return nil, err
		}
		return &Media{Posts: posts, Users: users}, nil
	}

	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	posts, err := NewS3Store(ctx, client, cfg.S3BucketNamePosts)
	if err != nil {
		return nil, err
	}
	users, err := NewS3Store(ctx, client, cfg.S3BucketNameUsers)
	if err != nil {
		return nil, err
	}
	return &Media{Posts: posts, Users: users}, nil
}
