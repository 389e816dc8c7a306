package repository

import (
	"context"
	"testing"
	"time"

	"murmur/internal/models"
	"murmur/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setRate(t *testing.T, db *gorm.DB, post *models.Post, rate int) {
	t.Helper()
	require.NoError(t, db.Model(&models.Post{}).Where("post_id = ?", post.ID).UpdateColumn("popularity_rate", rate).Error)
}

func TestPostRepository_GetFreshPosts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	p1 := testutil.CreatePost(t, db, alice, "one", "text")
	p2 := testutil.CreatePost(t, db, alice, "two", "text")
	p3 := testutil.CreatePost(t, db, alice, "three", "text")
	own := testutil.CreatePost(t, db, bob, "mine", "text")
	setRate(t, db, p1, 10)
	setRate(t, db, p2, 30)
	setRate(t, db, p3, 20)
	setRate(t, db, own, 100)

	ids, err := repo.GetFreshPosts(ctx, bob.ID, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID, p3.ID, p1.ID}, ids)

	ids, err = repo.GetFreshPosts(ctx, bob.ID, []string{p2.ID}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{p3.ID, p1.ID}, ids)

	ids, err = repo.GetFreshPosts(ctx, bob.ID, nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, ids)
}

func TestPostRepository_GetFollowedPosts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	fromAlice := testutil.CreatePost(t, db, alice, "alice post", "text")
	testutil.CreatePost(t, db, carol, "carol post", "text")

	ids, err := repo.GetFollowedPosts(ctx, bob.ID, nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	testutil.Follow(t, db, bob, alice)

	ids, err = repo.GetFollowedPosts(ctx, bob.ID, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{fromAlice.ID}, ids)

	ids, err = repo.GetFollowedPosts(ctx, bob.ID, []string{fromAlice.ID}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostRepository_GetByIDsLoadsRelations(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	parent := testutil.CreatePost(t, db, alice, "parent", "text")
	reply := testutil.CreateReply(t, db, alice, parent, "reply")
	require.NoError(t, db.Create(&models.PostImage{PostID: parent.ID, ImageName: "a.png"}).Error)

	posts, err := repo.GetByIDs(ctx, []string{parent.ID, reply.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	byID := map[string]models.Post{}
	for _, p := range posts {
		byID[p.ID] = p
	}
	require.NotNil(t, byID[parent.ID].Owner)
	assert.Equal(t, "alice", byID[parent.ID].Owner.Username)
	assert.Len(t, byID[parent.ID].Images, 1)
	require.NotNil(t, byID[reply.ID].Parent)
	assert.Equal(t, parent.ID, byID[reply.ID].Parent.ID)
	assert.Equal(t, "alice", byID[reply.ID].Parent.Owner.Username)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_GetRepliesOrdering(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	parent := testutil.CreatePost(t, db, alice, "parent", "text")

	base := time.Now().Add(-time.Hour)
	older := &models.Post{Title: "r", Text: "older", IsReply: true, ParentPostID: &parent.ID, OwnerID: &bob.ID, PublishedAt: base}
	newer := &models.Post{Title: "r", Text: "newer", IsReply: true, ParentPostID: &parent.ID, OwnerID: &bob.ID, PublishedAt: base.Add(time.Minute)}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)
	require.NoError(t, db.Create(&models.PostAction{OwnerID: alice.ID, PostID: older.ID, Action: models.ActionLike}).Error)

	replies, err := repo.GetReplies(ctx, parent.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, newer.ID, replies[0].ID)
	assert.Equal(t, older.ID, replies[1].ID)
	assert.Equal(t, 1, replies[1].LikeCount)
	assert.Equal(t, 0, replies[0].LikeCount)
}

func TestPostRepository_UpdateFieldsIsPartial(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice, "title", "text")
	before := post.LastUpdatedAt

	time.Sleep(5 * time.Millisecond)
	title := "new title"
	updated, err := repo.UpdateFields(ctx, post.ID, PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "text", updated.Text)
	assert.True(t, updated.LastUpdatedAt.After(before))

	_, err = repo.UpdateFields(ctx, "missing", PostUpdate{Title: &title})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	root := testutil.CreatePost(t, db, alice, "root", "text")
	child := testutil.CreateReply(t, db, alice, root, "child")
	grandchild := testutil.CreateReply(t, db, alice, child, "grandchild")
	other := testutil.CreatePost(t, db, alice, "other", "text")
	require.NoError(t, db.Create(&models.PostImage{PostID: root.ID, ImageName: "root.png"}).Error)
	require.NoError(t, db.Create(&models.PostImage{PostID: grandchild.ID, ImageName: "gc.png"}).Error)
	require.NoError(t, db.Create(&models.PostAction{OwnerID: alice.ID, PostID: child.ID, Action: models.ActionView}).Error)

	deleted, err := repo.Delete(ctx, root.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root.ID, child.ID, grandchild.ID}, deleted.PostIDs)
	assert.ElementsMatch(t, []string{"root.png", "gc.png"}, deleted.ImageNames)

	var posts, images, actions int64
	db.Model(&models.Post{}).Count(&posts)
	db.Model(&models.PostImage{}).Count(&images)
	db.Model(&models.PostAction{}).Count(&actions)
	assert.Equal(t, int64(1), posts)
	assert.Zero(t, images)
	assert.Zero(t, actions)

	_, err = repo.GetByID(ctx, other.ID)
	require.NoError(t, err)

	_, err = repo.Delete(ctx, root.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_Popularity(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	post := testutil.CreatePost(t, db, alice, "title", "text")

	require.NoError(t, repo.AddPopularity(ctx, post.ID, 5))
	require.NoError(t, repo.AddPopularity(ctx, post.ID, -8))
	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PopularityRate, "rate is clamped at zero")

	stamp := got.LastUpdatedAt
	now := time.Now()
	require.NoError(t, repo.SetPopularity(ctx, post.ID, 42, now))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.PopularityRate)
	require.NotNil(t, got.LastRateCalculatedAt)
	assert.True(t, got.LastUpdatedAt.Equal(stamp), "recompute keeps last_updated_ts")

	assert.True(t, models.IsCode(repo.AddPopularity(ctx, "missing", 1), models.CodeNotFound))
}

func TestPostRepository_StaleAndIndexListing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	stale := testutil.CreatePost(t, db, alice, "stale", "text")
	fresh := testutil.CreatePost(t, db, alice, "fresh", "text")
	reply := testutil.CreateReply(t, db, alice, fresh, "reply")
	require.NoError(t, db.Model(&models.Post{}).Where("post_id = ?", stale.ID).
		UpdateColumn("last_updated_ts", time.Now().Add(-48*time.Hour)).Error)

	ids, err := repo.GetStalePostIDs(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, ids)

	var listed []string
	after := ""
	for {
		page, err := repo.ListForIndex(ctx, after, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		listed = append(listed, page[0].ID)
		after = page[0].ID
	}
	assert.ElementsMatch(t, []string{stale.ID, fresh.ID}, listed)
	assert.NotContains(t, listed, reply.ID)
}
