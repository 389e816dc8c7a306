package server

import (
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SearchPosts handles GET /search/posts?prompt=&page=
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page, err := parsePageQuery(c)
	if err != nil {
		return err
	}

	var posts []models.PostLite
	err = s.do(c, func(sc *service.Scope) error {
		posts, err = sc.Search.Posts(c.UserContext(), c.Query("prompt"), page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, posts)
}

// SearchUsers handles GET /search/users/:page?prompt=
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page, err := parsePage(c, "page")
	if err != nil {
		return err
	}

	var users []models.UserLite
	err = s.do(c, func(sc *service.Scope) error {
		users, err = sc.Search.Users(c.UserContext(), c.Query("prompt"), page)
		return err
	})
	if err != nil {
		return err
	}
	return list(c, users)
}
