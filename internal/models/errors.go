package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes. One per error kind the API can surface.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeCollision         = "COLLISION"
	CodeInvalidAction     = "INVALID_ACTION"
	CodeLimitReached      = "LIMIT_REACHED"
	CodeStore             = "STORE_ERROR"
	CodeIndex             = "INDEX_ERROR"
	CodeEphemeral         = "EPHEMERAL_ERROR"
	CodeMedia             = "MEDIA_ERROR"
	CodeJWT               = "JWT_ERROR"
	CodeHash              = "HASH_ERROR"
	CodeWebsocketProtocol = "WEBSOCKET_PROTOCOL"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewCollisionError(message string) *AppError {
	return &AppError{
		Code:    CodeCollision,
		Message: message,
	}
}

func NewInvalidActionError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidAction,
		Message: message,
	}
}

func NewLimitReachedError(message string) *AppError {
	return &AppError{
		Code:    CodeLimitReached,
		Message: message,
	}
}

func NewStoreError(err error) *AppError {
	return &AppError{
		Code:    CodeStore,
		Message: "Relational store failure",
		Err:     err,
	}
}

func NewIndexError(err error) *AppError {
	return &AppError{
		Code:    CodeIndex,
		Message: "Vector index failure",
		Err:     err,
	}
}

func NewEphemeralError(err error) *AppError {
	return &AppError{
		Code:    CodeEphemeral,
		Message: "Ephemeral store failure",
		Err:     err,
	}
}

func NewMediaError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeMedia,
		Message: message,
		Err:     err,
	}
}

func NewJWTError(err error) *AppError {
	return &AppError{
		Code:    CodeJWT,
		Message: "Token primitive failure",
		Err:     err,
	}
}

func NewHashError(err error) *AppError {
	return &AppError{
		Code:    CodeHash,
		Message: "Password hashing failure",
		Err:     err,
	}
}

func NewWebsocketProtocolError(message string) *AppError {
	return &AppError{
		Code:    CodeWebsocketProtocol,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code carried by err, or CodeInternal.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch ErrorCode(err) {
	case CodeValidation, CodeInvalidAction, CodeLimitReached, CodeWebsocketProtocol:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCollision:
		return http.StatusConflict
	case CodeMedia:
		var appErr *AppError
		// An unguessable or disallowed mime type carries no cause.
		if errors.As(err, &appErr) && appErr.Err == nil {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
