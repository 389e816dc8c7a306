package repository

import (
	"context"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// ImageRepository defines the interface for post image rows.
type ImageRepository interface {
	Create(ctx context.Context, image *models.PostImage) error
	CountByPost(ctx context.Context, postID string) (int, error)
	GetByPost(ctx context.Context, postID string) ([]models.PostImage, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository instance
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.PostImage) error {
	return storeErr("create image", r.db.WithContext(ctx).Create(image).Error)
}

func (r *imageRepository) CountByPost(ctx context.Context, postID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostImage{}).Where("post_id = ?", postID).Count(&count).Error
	return int(count), storeErr("count images", err)
}

func (r *imageRepository) GetByPost(ctx context.Context, postID string) ([]models.PostImage, error) {
	images := []models.PostImage{}
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("image_id").Find(&images).Error
	return images, storeErr("get images", err)
}
