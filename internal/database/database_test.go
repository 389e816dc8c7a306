package database

import (
	"fmt"
	"testing"

	"murmur/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteMigratesSchema(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = "sqlite"
	cfg.DatabaseURL = ":memory:"

	db, err := Connect(cfg)
	require.NoError(t, err)

	for _, table := range []string{"users", "friendships", "posts", "post_images", "post_actions", "chat_rooms", "chat_participants", "messages"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.False(t, db.Migrator().HasColumn("posts", "like_count"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestPersistentModelsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range PersistentModels() {
		name := fmt.Sprintf("%T", m)
		assert.False(t, seen[name], "duplicate model %s", name)
		seen[name] = true
	}
}
