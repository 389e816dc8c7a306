package server

import (
	"errors"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the single place where errors become HTTP responses.
// Client-caused errors are logged at WARN and echoed. Anything else is
// logged as critical and hidden behind the configured client message unless
// DEBUG is on.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()

	// Routing and body-limit errors raised by Fiber itself.
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		middleware.Logger.WarnContext(ctx, "request rejected", "status", fiberErr.Code, "error", fiberErr.Message)
		return models.RespondWithError(c, fiberErr.Code, &models.AppError{Code: httpCode(fiberErr.Code), Message: fiberErr.Message})
	}

	status := models.StatusFor(err)
	if status < fiber.StatusInternalServerError {
		middleware.Logger.WarnContext(ctx, "client error",
			"code", models.ErrorCode(err), "status", status, "path", c.Path(), "error", err)
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			// Causes of client errors are internal detail.
			return models.RespondWithError(c, status, &models.AppError{Code: appErr.Code, Message: appErr.Message})
		}
		return models.RespondWithError(c, status, err)
	}

	middleware.Logger.ErrorContext(ctx, "unexpected error",
		"code", models.ErrorCode(err), "path", c.Path(), "error", err, "severity", "critical")
	if s.config.Debug {
		return models.RespondWithError(c, status, err)
	}
	return models.RespondWithError(c, status, &models.AppError{
		Code:    models.CodeInternal,
		Message: s.config.ClientErrorMessage,
	})
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusRequestEntityTooLarge:
		return models.CodeLimitReached
	case fiber.StatusMethodNotAllowed, fiber.StatusUpgradeRequired:
		return models.CodeInvalidAction
	default:
		if status >= fiber.StatusInternalServerError {
			return models.CodeInternal
		}
		return models.CodeValidation
	}
}
