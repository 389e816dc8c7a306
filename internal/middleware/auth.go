package middleware

import (
	"context"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Authorizer resolves an Authorization header to its user.
type Authorizer interface {
	AuthorizeRequest(ctx context.Context, header string) (*models.User, error)
}

// AuthRequired rejects requests without a live access token and stores the
// user in c.Locals(LocalUser).
func AuthRequired(auth Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.AuthorizeRequest(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		c.Locals(LocalUser, user)
		c.Locals(LocalUserID, user.ID)
		c.SetUserContext(WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(LocalUser).(*models.User)
	if !ok || user == nil {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	return user, nil
}
