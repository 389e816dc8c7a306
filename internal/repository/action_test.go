package repository

import (
	"context"
	"testing"
	"time"

	"murmur/internal/models"
	"murmur/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRepository_Ledger(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewActionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice, "title", "text")

	first := &models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: models.ActionView}
	second := &models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: models.ActionView}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	actions, err := repo.GetActions(ctx, alice.ID, post.ID, models.ActionView)
	require.NoError(t, err)
	require.Len(t, actions, 2, "duplicates are kept")
	assert.Equal(t, second.ID, actions[0].ID)

	has, err := repo.HasAction(ctx, alice.ID, post.ID, models.ActionLike)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.True(t, models.IsCode(repo.Delete(ctx, first.ID), models.CodeNotFound))

	has, err = repo.HasAction(ctx, alice.ID, post.ID, models.ActionView)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestActionRepository_GetUserActions(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewActionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	base := time.Now().Add(-time.Hour)
	var posts []*models.Post
	for i := 0; i < 3; i++ {
		p := testutil.CreatePost(t, db, alice, "title", "text")
		posts = append(posts, p)
		require.NoError(t, repo.Create(ctx, &models.PostAction{
			OwnerID: alice.ID, PostID: p.ID, Action: models.ActionLike, Date: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	actions, err := repo.GetUserActions(ctx, alice.ID, models.ActionLike, 2, true)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, posts[2].ID, actions[0].PostID)
	assert.Equal(t, posts[1].ID, actions[1].PostID)
	require.NotNil(t, actions[0].Post)
	assert.Equal(t, posts[2].ID, actions[0].Post.ID)

	all, err := repo.GetUserActions(ctx, alice.ID, models.ActionLike, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Nil(t, all[0].Post)
}

func TestActionRepository_CountSince(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewActionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	p1 := testutil.CreatePost(t, db, alice, "one", "text")
	p2 := testutil.CreatePost(t, db, alice, "two", "text")
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	for _, a := range []models.PostAction{
		{OwnerID: alice.ID, PostID: p1.ID, Action: models.ActionView, Date: now},
		{OwnerID: alice.ID, PostID: p1.ID, Action: models.ActionView, Date: now},
		{OwnerID: alice.ID, PostID: p1.ID, Action: models.ActionLike, Date: now},
		{OwnerID: bob.ID, PostID: p1.ID, Action: models.ActionLike, Date: old},
		{OwnerID: alice.ID, PostID: p2.ID, Action: models.ActionRepost, Date: old},
	} {
		a := a
		require.NoError(t, repo.Create(ctx, &a))
	}

	counts, err := repo.CountSince(ctx, []string{p1.ID, p2.ID}, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[p1.ID][models.ActionView])
	assert.Equal(t, 1, counts[p1.ID][models.ActionLike])
	assert.Empty(t, counts[p2.ID])

	empty, err := repo.CountSince(ctx, nil, now)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestActionRepository_SingleLikeAndRepost(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewActionRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice, "title", "text")

	for _, kind := range []models.ActionKind{models.ActionLike, models.ActionRepost} {
		require.NoError(t, repo.Create(ctx, &models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: kind}))
		err := repo.Create(ctx, &models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: kind})
		assert.True(t, models.IsCode(err, models.CodeCollision), "second %s: %v", kind, err)
	}
	for _, kind := range []models.ActionKind{models.ActionView, models.ActionReply} {
		for i := 0; i < 2; i++ {
			require.NoError(t, repo.Create(ctx, &models.PostAction{OwnerID: alice.ID, PostID: post.ID, Action: kind}))
		}
	}

	var total int64
	require.NoError(t, db.Model(&models.PostAction{}).Where("post_id = ?", post.ID).Count(&total).Error)
	assert.Equal(t, int64(6), total)
}
