package repository

import (
	"context"
	"strings"
	"testing"

	"murmur/internal/models"
	"murmur/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func declaredType(t *testing.T, db *gorm.DB, model interface{}, column string) string {
	t.Helper()
	cols, err := db.Migrator().ColumnTypes(model)
	require.NoError(t, err)
	for _, c := range cols {
		if c.Name() == column {
			raw, _ := c.ColumnType()
			return strings.ToLower(raw)
		}
	}
	t.Fatalf("column %s not found", column)
	return ""
}

func TestSchema_PostKeysStayStrings(t *testing.T) {
	db := testutil.NewTestDB(t)

	assert.Contains(t, declaredType(t, db, &models.Post{}, "post_id"), "varchar")
	assert.Contains(t, declaredType(t, db, &models.PostAction{}, "post_id"), "varchar")
	assert.Contains(t, declaredType(t, db, &models.PostImage{}, "post_id"), "varchar")

	assert.True(t, db.Migrator().HasConstraint(&models.Post{}, "Actions"), "post_actions references posts")
	assert.True(t, db.Migrator().HasConstraint(&models.Post{}, "Images"), "post_images references posts")
	assert.False(t, db.Migrator().HasConstraint(&models.Post{}, "fk_post_actions_post"), "posts references nothing but itself")
}

func TestSchema_PostsAcceptInserts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice, "hello", "world")
	require.Len(t, post.ID, 36)
	reply := testutil.CreateReply(t, db, alice, post, "again")
	require.NoError(t, db.Create(&models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: models.ActionLike}).Error)

	got, err := repo.GetByID(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Parent)
	assert.Equal(t, post.ID, got.Parent.ID)
}
