package service

import (
	"context"
	"errors"

	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", models.NewHashError(err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.NewUnauthorizedError("invalid credentials")
	}
	if err != nil {
		return models.NewHashError(err)
	}
	return nil
}

// UserService covers accounts and profiles.
type UserService struct {
	users repository.UserRepository
	auth  *AuthService
	media *MediaService
	rules validation.Rules
	cfg   *config.Config
}

// Register creates the account and logs it in.
func (s *UserService) Register(ctx context.Context, req validation.RegisterRequest) (*models.TokenPair, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.rules.Username(req.Username); err != nil {
		return nil, err
	}
	if err := s.rules.Email(req.Email); err != nil {
		return nil, err
	}
	if err := s.rules.Password(req.Password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.auth.IssuePair(ctx, user.ID)
}

// Login checks the credentials and replaces the user's token pair.
func (s *UserService) Login(ctx context.Context, req validation.LoginRequest) (*models.TokenPair, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetByLogin(ctx, req.Identifier())
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("invalid credentials")
		}
		return nil, err
	}
	if err := checkPassword(user.PasswordHash, req.Password); err != nil {
		return nil, err
	}
	return s.auth.IssuePair(ctx, user.ID)
}

// Profile returns a user's public profile. The email is shown only to its
// owner.
func (s *UserService) Profile(ctx context.Context, viewerID, userID string) (*models.UserProfile, error) {
	user, err := s.users.GetProfile(ctx, userID, s.cfg.SmallPagination)
	if err != nil {
		return nil, err
	}
	avatar, err := s.media.AvatarURL(ctx, user)
	if err != nil {
		return nil, err
	}
	followed, err := s.media.userLites(ctx, user.Followed)
	if err != nil {
		return nil, err
	}
	followers, err := s.media.userLites(ctx, user.Followers)
	if err != nil {
		return nil, err
	}
	for i := range user.Posts {
		user.Posts[i].Owner = user
	}
	posts, err := s.media.postLites(ctx, user.Posts)
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		ID:        user.ID,
		Username:  user.Username,
		Joined:    user.JoinedAt,
		AvatarURL: avatar,
		Followed:  followed,
		Followers: followers,
		Posts:     posts,
	}
	if viewerID == user.ID {
		profile.Email = user.Email
	}
	return profile, nil
}

// ChangeUsername renames the user. The current name is rejected.
func (s *UserService) ChangeUsername(ctx context.Context, user *models.User, req validation.ChangeUsernameRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	if req.NewUsername == user.Username {
		return models.NewInvalidActionError("new username matches the current one")
	}
	if err := s.rules.Username(req.NewUsername); err != nil {
		return err
	}
	return s.users.Update(ctx, user.ID, map[string]interface{}{"username": req.NewUsername})
}

// ChangePassword replaces the password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, user *models.User, req validation.ChangePasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	if err := checkPassword(user.PasswordHash, req.OldPassword); err != nil {
		return err
	}
	if req.OldPassword == req.NewPassword {
		return models.NewInvalidActionError("new password matches the current one")
	}
	if err := s.rules.Password(req.NewPassword); err != nil {
		return err
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, user.ID, map[string]interface{}{"password_hash": hash})
}

// Delete removes the account and revokes its tokens. Posts stay without an
// owner.
func (s *UserService) Delete(ctx context.Context, user *models.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.media.DeleteAvatar(ctx, user)
	return s.auth.DeactivateTokensByID(ctx, user.ID)
}
