package cache

import "fmt"

// TokenKind selects a session token namespace.
type TokenKind string

const (
	AccessToken  TokenKind = "acces-jwt-token:"
	RefreshToken TokenKind = "refresh-jwt-token:"
	ChatToken    TokenKind = "chat-jwt-token:"
)

// TokenKinds lists every session namespace.
var TokenKinds = []TokenKind{AccessToken, RefreshToken, ChatToken}

// ImageKind selects an image capability namespace.
type ImageKind string

const (
	PostImage ImageKind = "post-image-acces:"
	UserImage ImageKind = "user-image-acces:"
)

const (
	viewedPostsPrefix     = "viewed-posts:"
	chatConnectionsPrefix = "chat-connections-room:"
	chatPaginationPrefix  = "chat-pagination-user-"
)

func tokenKey(kind TokenKind, token string) string {
	return string(kind) + token
}

func imageKey(kind ImageKind, token string) string {
	return string(kind) + token
}

func viewedPostsKey(userID string) string {
	return viewedPostsPrefix + userID
}

func viewTimeoutKey(userID, postID string) string {
	return fmt.Sprintf("view-timeout:%s-post:%s", userID, postID)
}

func dailyViewsKey(userID, postID, day string) string {
	return fmt.Sprintf("view-day:%s-post:%s:%s", userID, postID, day)
}

func presenceKey(roomID string) string {
	return chatConnectionsPrefix + roomID
}

func chatPaginationKey(userID string) string {
	return chatPaginationPrefix + userID
}
