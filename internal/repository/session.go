package repository

import (
	"context"

	"gorm.io/gorm"
)

// Session owns one transaction. Statements execute immediately inside it, so
// reads issued after a write in the same session observe that write.
// Commit, Rollback and Close are explicit and a session is never shared
// between requests.
type Session struct {
	tx   *gorm.DB
	done bool
}

// Begin opens a session on db.
func Begin(ctx context.Context, db *gorm.DB) (*Session, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, storeErr("begin session", tx.Error)
	}
	return &Session{tx: tx}, nil
}

// DB exposes the transaction handle.
func (s *Session) DB() *gorm.DB { return s.tx }

func (s *Session) Users() UserRepository     { return NewUserRepository(s.tx) }
func (s *Session) Friends() FriendRepository { return NewFriendRepository(s.tx) }
func (s *Session) Posts() PostRepository     { return NewPostRepository(s.tx) }
func (s *Session) Actions() ActionRepository { return NewActionRepository(s.tx) }
func (s *Session) Images() ImageRepository   { return NewImageRepository(s.tx) }
func (s *Session) Chats() ChatRepository     { return NewChatRepository(s.tx) }

// Commit makes the session's writes durable.
func (s *Session) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	return storeErr("commit session", s.tx.Commit().Error)
}

// Rollback discards the session's writes.
func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return storeErr("rollback session", s.tx.Rollback().Error)
}

// Close rolls back a session that was neither committed nor rolled back.
func (s *Session) Close() error {
	return s.Rollback()
}
