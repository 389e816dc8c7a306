package validation

import (
	"errors"
	"fmt"
	"strings"

	"murmur/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest accepts a username or an email in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required_without_all=Username Email"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// Identifier returns whichever login field was sent.
func (r LoginRequest) Identifier() string {
	switch {
	case r.Login != "":
		return r.Login
	case r.Username != "":
		return r.Username
	default:
		return r.Email
	}
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title        string  `json:"title" validate:"required"`
	Text         string  `json:"text" validate:"required"`
	ParentPostID *string `json:"parent_post_id" validate:"omitempty,uuid"`
}

// UpdatePostRequest is the body of PATCH /posts/{post_id}. Absent fields are
// left untouched.
type UpdatePostRequest struct {
	Title *string `json:"title"`
	Text  *string `json:"text"`
}

type ChangeUsernameRequest struct {
	NewUsername string `json:"new_username" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// CreateGroupRequest is the body of POST /chats/group.
type CreateGroupRequest struct {
	Name    string   `json:"name" validate:"required,max=128"`
	UserIDs []string `json:"users_ids" validate:"required,min=1,dive,uuid"`
}

// ChatFrame is one client websocket frame.
type ChatFrame struct {
	Action    string `json:"action" validate:"required,oneof=send change delete"`
	Message   string `json:"message"`
	MessageID string `json:"message_id" validate:"required_unless=Action send"`
}

// Struct validates tags and flattens failures into one VALIDATION_ERROR.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewValidationError(err.Error())
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return models.NewValidationError(strings.Join(parts, "; "))
}
