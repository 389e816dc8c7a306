package server

import (
	"murmur/internal/models"
	"murmur/internal/service"
	"murmur/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /register
func (s *Server) Register(c *fiber.Ctx) error {
	var req validation.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var pair *models.TokenPair
	err := s.do(c, func(sc *service.Scope) error {
		var err error
		pair, err = sc.Users.Register(c.UserContext(), req)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var req validation.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var pair *models.TokenPair
	err := s.do(c, func(sc *service.Scope) error {
		var err error
		pair, err = sc.Users.Login(c.UserContext(), req)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

// Logout handles POST /logout. The access token in Authorization identifies
// the session; every token of its owner is revoked.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.svc.Auth.Logout(c.UserContext(), c.Get(fiber.HeaderAuthorization)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh handles GET /refresh with the refresh token in Authorization
func (s *Server) Refresh(c *fiber.Ctx) error {
	token, err := s.svc.Auth.Refresh(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	return c.JSON(token)
}
