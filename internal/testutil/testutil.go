// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"

	"murmur/internal/database"
	"murmur/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory SQLite database private to the test.
// It has a single connection, so callers must not query it while a session
// opened on it is still running.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewTestRedis returns a miniredis server and a client connected to it.
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a user with a placeholder hash.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post owned by owner.
func CreatePost(t *testing.T, db *gorm.DB, owner *models.User, title, text string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Text: text}
	if owner != nil {
		post.OwnerID = &owner.ID
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

// CreateReply inserts a reply to parent.
func CreateReply(t *testing.T, db *gorm.DB, owner *models.User, parent *models.Post, text string) *models.Post {
	t.Helper()
	post := &models.Post{Title: "re: " + parent.Title, Text: text, IsReply: true, ParentPostID: &parent.ID}
	if owner != nil {
		post.OwnerID = &owner.ID
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

// Follow inserts a follow edge.
func Follow(t *testing.T, db *gorm.DB, follower, followed *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.Friendship{FollowerID: follower.ID, FollowedID: followed.ID}).Error)
}
