package server

import (
	"murmur/internal/models"
	"murmur/internal/service"
	"murmur/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /posts/feed/:page
func (s *Server) GetFeed(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c, "page")
	if err != nil {
		return err
	}

	var posts []models.PostLite
	err = s.do(c, func(sc *service.Scope) error {
		posts, err = sc.Feed.Page(c.UserContext(), uid, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, posts)
}

// GetFollowingPosts handles GET /posts/following?page=
func (s *Server) GetFollowingPosts(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	page, err := parsePageQuery(c)
	if err != nil {
		return err
	}

	var posts []models.PostLite
	err = s.do(c, func(sc *service.Scope) error {
		posts, err = sc.Posts.Following(c.UserContext(), uid, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, posts)
}

// CreatePost handles POST /posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req validation.CreatePostRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var post *models.Post
	err = s.do(c, func(sc *service.Scope) error {
		post, err = sc.Posts.Create(c.UserContext(), uid, req)
		return err
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderLocation, "/posts/"+post.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPost handles GET /posts/:post_id. Reading a post counts as a view.
func (s *Server) GetPost(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}

	var post *models.PostFull
	err = s.do(c, func(sc *service.Scope) error {
		post, err = sc.Posts.Get(c.UserContext(), uid, postID)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// GetComments handles GET /posts/:post_id/comments?page=
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}
	page, err := parsePageQuery(c)
	if err != nil {
		return err
	}

	var replies []models.PostFull
	err = s.do(c, func(sc *service.Scope) error {
		replies, err = sc.Posts.Replies(c.UserContext(), postID, page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, replies)
}

// UpdatePost handles PATCH /posts/:post_id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}
	var req validation.UpdatePostRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var post *models.PostFull
	err = s.do(c, func(sc *service.Scope) error {
		post, err = sc.Posts.Update(c.UserContext(), uid, postID, req)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /posts/:post_id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Posts.Delete(c.UserContext(), uid, postID)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /posts/:post_id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.react(c, models.ActionLike, true)
}

// UnlikePost handles DELETE /posts/:post_id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.react(c, models.ActionLike, false)
}

// RepostPost handles POST /posts/:post_id/repost
func (s *Server) RepostPost(c *fiber.Ctx) error {
	return s.react(c, models.ActionRepost, true)
}

// UnrepostPost handles DELETE /posts/:post_id/repost
func (s *Server) UnrepostPost(c *fiber.Ctx) error {
	return s.react(c, models.ActionRepost, false)
}

func (s *Server) react(c *fiber.Ctx, kind models.ActionKind, add bool) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		if add {
			return sc.Posts.React(c.UserContext(), kind, uid, postID)
		}
		return sc.Posts.Unreact(c.UserContext(), kind, uid, postID)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
