package database

import "murmur/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Friendship{},
		&models.Post{},
		&models.PostImage{},
		&models.PostAction{},
		&models.ChatRoom{},
		&models.ChatParticipant{},
		&models.Message{},
	}
}
