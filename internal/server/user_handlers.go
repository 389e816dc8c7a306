package server

import (
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/service"
	"murmur/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /users/my-profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	return s.profile(c, uid, uid)
}

// GetUserProfile handles GET /users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	target, err := parseUUID(c, "id", "User")
	if err != nil {
		return err
	}
	return s.profile(c, uid, target)
}

func (s *Server) profile(c *fiber.Ctx, viewerID, targetID string) error {
	var profile *models.UserProfile
	err := s.do(c, func(sc *service.Scope) error {
		var err error
		profile, err = sc.Users.Profile(c.UserContext(), viewerID, targetID)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /users/:id/posts/:page
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	target, err := parseUUID(c, "id", "User")
	if err != nil {
		return err
	}
	page, err := parsePage(c, "page")
	if err != nil {
		return err
	}

	var posts []models.PostLite
	err = s.do(c, func(sc *service.Scope) error {
		posts, err = sc.Posts.UserPosts(c.UserContext(), target, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, posts)
}

// GetFollowers handles GET /users/:id/followers/:page
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.relations(c, func(sc *service.Scope, id string, page int) ([]models.UserLite, error) {
		return sc.Follows.Followers(c.UserContext(), id, page)
	})
}

// GetFollowed handles GET /users/:id/followed/:page
func (s *Server) GetFollowed(c *fiber.Ctx) error {
	return s.relations(c, func(sc *service.Scope, id string, page int) ([]models.UserLite, error) {
		return sc.Follows.Followed(c.UserContext(), id, page)
	})
}

func (s *Server) relations(c *fiber.Ctx, fetch func(*service.Scope, string, int) ([]models.UserLite, error)) error {
	target, err := parseUUID(c, "id", "User")
	if err != nil {
		return err
	}
	page, err := parsePage(c, "page")
	if err != nil {
		return err
	}

	var users []models.UserLite
	err = s.do(c, func(sc *service.Scope) error {
		users, err = fetch(sc, target, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, users)
}

// FollowUser handles POST /users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	return s.follow(c, true)
}

// UnfollowUser handles DELETE /users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	return s.follow(c, false)
}

func (s *Server) follow(c *fiber.Ctx, add bool) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	target, err := parseUUID(c, "id", "User")
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		if add {
			return sc.Follows.Follow(c.UserContext(), uid, target)
		}
		return sc.Follows.Unfollow(c.UserContext(), uid, target)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangeUsername handles PATCH /users/my-profile/username
func (s *Server) ChangeUsername(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	var req validation.ChangeUsernameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Users.ChangeUsername(c.UserContext(), user, req)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePassword handles PATCH /users/my-profile/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	var req validation.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Users.ChangePassword(c.UserContext(), user, req)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteMyProfile handles DELETE /users/my-profile
func (s *Server) DeleteMyProfile(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Users.Delete(c.UserContext(), user)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
