package repository

import (
	"context"
	"strings"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetProfile(ctx context.Context, id string, postsLimit int) (*models.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	SearchByUsername(ctx context.Context, prompt string, page, n int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return storeErr("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "user_id = ?", id).Error; err != nil {
		return nil, notFoundOr("get user", "User", id, err)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&users).Error
	return users, storeErr("get users", err)
}

// GetByLogin matches either the username or the email.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if err != nil {
		return nil, notFoundOr("get user by login", "User", login, err)
	}
	return &user, nil
}

// GetProfile loads the user with followed, followers and the newest posts.
func (r *userRepository) GetProfile(ctx context.Context, id string, postsLimit int) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	user.Followed = []models.User{}
	user.Followers = []models.User{}
	user.Posts = []models.Post{}

	err = db.Joins("JOIN friendships ON friendships.followed_id = users.user_id").
		Where("friendships.follower_id = ?", id).
		Order("friendships.created_ts DESC").
		Find(&user.Followed).Error
	if err != nil {
		return nil, storeErr("load followed", err)
	}

	err = db.Joins("JOIN friendships ON friendships.follower_id = users.user_id").
		Where("friendships.followed_id = ?", id).
		Order("friendships.created_ts DESC").
		Find(&user.Followers).Error
	if err != nil {
		return nil, storeErr("load followers", err)
	}

	err = db.Preload("Images").Preload("Parent").Preload("Parent.Owner").
		Where("owner_id = ?", id).
		Order("published_ts DESC").
		Limit(postsLimit).
		Find(&user.Posts).Error
	if err != nil {
		return nil, storeErr("load posts", err)
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("user_id = ?", id).Updates(fields)
	if res.Error != nil {
		return storeErr("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Delete removes a user. Posts and messages survive with a null owner,
// actions and follows are removed and dialogues are dropped with their messages.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("owner_id = ?", id).UpdateColumn("owner_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&models.PostAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR followed_id = ?", id, id).Delete(&models.Friendship{}).Error; err != nil {
			return err
		}

		var dialogues []string
		err := tx.Model(&models.ChatRoom{}).
			Joins("JOIN chat_participants ON chat_participants.room_id = chat_rooms.room_id").
			Where("chat_participants.user_id = ? AND chat_rooms.is_group = ?", id, false).
			Pluck("chat_rooms.room_id", &dialogues).Error
		if err != nil {
			return err
		}
		if len(dialogues) > 0 {
			if err := tx.Where("room_id IN ?", dialogues).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id IN ?", dialogues).Delete(&models.ChatParticipant{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id IN ?", dialogues).Delete(&models.ChatRoom{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Message{}).Where("owner_id = ?", id).UpdateColumn("owner_id", nil).Error; err != nil {
			return err
		}

		res := tx.Where("user_id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	return storeErr("delete user", err)
}

// SearchByUsername is a case-insensitive substring match.
func (r *userRepository) SearchByUsername(ctx context.Context, prompt string, page, n int) ([]models.User, error) {
	users := []models.User{}
	pattern := "%" + escapeLike(strings.ToLower(prompt)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", pattern).
		Order("username").
		Scopes(paginate(page, n)).
		Find(&users).Error
	return users, storeErr("search users", err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
