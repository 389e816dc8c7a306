package validation

import (
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestStruct(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Struct(RegisterRequest{Username: "alice", Email: "a@x", Password: "Abcdef12"}))

	err := Struct(RegisterRequest{Username: "alice"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Contains(t, err.Error(), "email failed required")

	bad := "not-a-uuid"
	assert.Error(t, Struct(CreatePostRequest{Title: "t", Text: "x", ParentPostID: &bad}))
	assert.NoError(t, Struct(CreatePostRequest{Title: "t", Text: "x"}))
}

func TestLoginIdentifier(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "alice", LoginRequest{Username: "alice"}.Identifier())
	assert.Equal(t, "a@x", LoginRequest{Email: "a@x"}.Identifier())
	assert.Equal(t, "l", LoginRequest{Login: "l", Username: "alice"}.Identifier())

	assert.Error(t, Struct(LoginRequest{Password: "x"}))
	assert.NoError(t, Struct(LoginRequest{Email: "a@x", Password: "x"}))
}

func TestChatFrame(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Struct(ChatFrame{Action: "send", Message: "hi"}))
	assert.NoError(t, Struct(ChatFrame{Action: "delete", MessageID: "m1"}))
	assert.Error(t, Struct(ChatFrame{Action: "delete"}))
	assert.Error(t, Struct(ChatFrame{Action: "shout"}))
}
