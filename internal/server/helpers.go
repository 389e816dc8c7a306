package server

import (
	"strconv"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// parsePage reads a zero-based page index from a route parameter.
func parsePage(c *fiber.Ctx, param string) (int, error) {
	return pageNumber(c.Params(param))
}

// parsePageQuery reads a zero-based page index from the query string,
// defaulting to the first page.
func parsePageQuery(c *fiber.Ctx) (int, error) {
	raw := c.Query("page")
	if raw == "" {
		return 0, nil
	}
	return pageNumber(raw)
}

func pageNumber(raw string) (int, error) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		return 0, models.NewValidationError("page must be a non-negative integer")
	}
	return page, nil
}

// parseUUID extracts a route parameter that must be an entity id. An id that
// cannot exist is reported as not found.
func parseUUID(c *fiber.Ctx, param, resource string) (string, error) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		return "", models.NewNotFoundError(resource, id)
	}
	return id, nil
}

// parseBody decodes the JSON body into out.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return models.NewValidationError("invalid request body")
	}
	return nil
}

// userID returns the id of the authenticated user.
func userID(c *fiber.Ctx) (string, error) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// do runs fn inside a request scope that commits on success.
func (s *Server) do(c *fiber.Ctx, fn func(*service.Scope) error) error {
	return s.svc.Do(c.UserContext(), fn)
}

// list writes a JSON array, never null.
func list[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(items)
}
