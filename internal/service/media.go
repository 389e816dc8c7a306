package service

import (
	"context"
	"errors"
	"fmt"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MediaService stores uploaded images and brokers short-lived access to
// them. Clients never see an object name, only a capability URL.
type MediaService struct {
	images repository.ImageRepository
	posts  repository.PostRepository
	users  repository.UserRepository
	store  *cache.Store
	media  *storage.Media
	tokens *cache.TokenCache
	cfg    *config.Config
}

// Image is a resolved capability.
type Image struct {
	Data []byte
	Mime string
}

const (
	postMediaPath = "/media/posts/"
	userMediaPath = "/media/users/"
)

// sniff checks size and content type and returns the mime and extension.
func (m *MediaService) sniff(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", models.NewValidationError("empty file")
	}
	if int64(len(data)) > m.cfg.PostImageMaxBytes() {
		return "", "", models.NewValidationError(fmt.Sprintf("file exceeds %d MB", m.cfg.PostImageMaxSizeMB))
	}
	detected := mimetype.Detect(data)
	if detected.Is("application/octet-stream") {
		return "", "", models.NewMediaError("could not determine file type", nil)
	}
	allowed := lo.ContainsBy(m.cfg.AllowedImageMimes(), func(mime string) bool { return detected.Is(mime) })
	if !allowed {
		return "", "", models.NewValidationError(fmt.Sprintf("file type %s is not allowed", detected.String()))
	}
	return detected.String(), detected.Extension(), nil
}

// UploadPostImage attaches one image to a post owned by userID.
func (m *MediaService) UploadPostImage(ctx context.Context, userID, postID string, data []byte) (*models.PostImage, error) {
	post, err := m.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsOwnedBy(userID) {
		return nil, models.NewInvalidActionError("only the owner can add images")
	}
	count, err := m.images.CountByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if count >= m.cfg.MaxNumberPostImages {
		return nil, models.NewLimitReachedError(fmt.Sprintf("a post can have at most %d images", m.cfg.MaxNumberPostImages))
	}

	mime, ext, err := m.sniff(data)
	if err != nil {
		return nil, err
	}
	name := uuid.NewString() + ext
	if err := m.media.Posts.Put(ctx, name, data, mime); err != nil {
		return nil, models.NewMediaError("failed to store image", err)
	}
	image := &models.PostImage{PostID: postID, ImageName: name}
	if err := m.images.Create(ctx, image); err != nil {
		bestEffort(ctx, "remove orphan image", m.media.Posts.Delete(ctx, name))
		return nil, err
	}
	return image, nil
}

// UploadAvatar replaces the user's avatar.
func (m *MediaService) UploadAvatar(ctx context.Context, user *models.User, data []byte) error {
	mime, ext, err := m.sniff(data)
	if err != nil {
		return err
	}
	name := uuid.NewString() + ext
	if err := m.media.Users.Put(ctx, name, data, mime); err != nil {
		return models.NewMediaError("failed to store avatar", err)
	}
	if err := m.users.Update(ctx, user.ID, map[string]interface{}{"avatar_image_name": name}); err != nil {
		bestEffort(ctx, "remove orphan avatar", m.media.Users.Delete(ctx, name))
		return err
	}
	if user.AvatarImageName != nil {
		m.tokens.Forget(ctx, cache.UserImage, *user.AvatarImageName)
		bestEffort(ctx, "remove previous avatar", m.media.Users.Delete(ctx, *user.AvatarImageName))
	}
	user.AvatarImageName = &name
	return nil
}

// DeletePostImages removes stored objects of deleted posts.
func (m *MediaService) DeletePostImages(ctx context.Context, names []string) {
	for _, name := range names {
		m.tokens.Forget(ctx, cache.PostImage, name)
	}
	if len(names) > 0 {
		bestEffort(ctx, "delete post images", m.media.Posts.Delete(ctx, names...))
	}
}

// DeleteAvatar removes the stored avatar object of a user.
func (m *MediaService) DeleteAvatar(ctx context.Context, user *models.User) {
	if user.AvatarImageName == nil {
		return
	}
	m.tokens.Forget(ctx, cache.UserImage, *user.AvatarImageName)
	bestEffort(ctx, "delete avatar", m.media.Users.Delete(ctx, *user.AvatarImageName))
}

// grant returns a capability for imageName, reusing a recent one.
func (m *MediaService) grant(ctx context.Context, kind cache.ImageKind, imageName string) (string, error) {
	if token, ok := m.tokens.Get(ctx, kind, imageName); ok {
		return token, nil
	}
	token := uuid.NewString()
	if err := m.store.SaveImageToken(ctx, kind, token, imageName, m.cfg.ImageTTL()); err != nil {
		return "", err
	}
	m.tokens.Set(ctx, kind, imageName, token)
	return token, nil
}

// PictureURLs mints one capability URL per image.
func (m *MediaService) PictureURLs(ctx context.Context, images []models.PostImage) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		token, err := m.grant(ctx, cache.PostImage, img.ImageName)
		if err != nil {
			return nil, err
		}
		urls = append(urls, postMediaPath+token)
	}
	return urls, nil
}

// AvatarURL returns nil for users without an avatar.
func (m *MediaService) AvatarURL(ctx context.Context, user *models.User) (*string, error) {
	if user == nil || user.AvatarImageName == nil {
		return nil, nil
	}
	token, err := m.grant(ctx, cache.UserImage, *user.AvatarImageName)
	if err != nil {
		return nil, err
	}
	url := userMediaPath + token
	return &url, nil
}

// Resolve turns a capability into image bytes. Unknown or expired tokens
// are UNAUTHORIZED.
func (m *MediaService) Resolve(ctx context.Context, kind cache.ImageKind, token string) (*Image, error) {
	name, err := m.store.ResolveImageToken(ctx, kind, token)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, models.NewUnauthorizedError("image token expired or unknown")
	}
	bucket := m.media.Posts
	if kind == cache.UserImage {
		bucket = m.media.Users
	}
	data, err := bucket.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.NewNotFoundError("Image", name)
	}
	if err != nil {
		return nil, models.NewMediaError("failed to read image", err)
	}
	return &Image{Data: data, Mime: mimetype.Detect(data).String()}, nil
}
