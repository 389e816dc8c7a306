package service

import (
	"context"
	"testing"
	"time"

	"murmur/internal/config"
	"murmur/internal/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchPosts(t *testing.T, f *fixture, prompt string, page int) []models.PostLite {
	t.Helper()
	var found []models.PostLite
	require.NoError(t, f.do(t, func(sc *Scope) error {
		var err error
		found, err = sc.Search.Posts(context.Background(), prompt, page)
		return err
	}))
	return found
}

func TestSearch_PostsNewestFirstWithinPage(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.FeedMaxPostsLoad = 2 })
	ctx := context.Background()
	alice, _ := f.register(t, "alice")

	now := time.Now().Truncate(time.Second)
	posts := []models.Post{
		{OwnerID: &alice.ID, Title: "golang", Text: "golang golang golang", PublishedAt: now.Add(-3 * time.Hour)},
		{OwnerID: &alice.ID, Title: "weather", Text: "golang and rain today", PublishedAt: now.Add(-time.Hour)},
		{OwnerID: &alice.ID, Title: "cooking", Text: "soup with leeks", PublishedAt: now},
	}
	for i := range posts {
		require.NoError(t, f.db.Create(&posts[i]).Error)
	}
	require.NoError(t, f.index.Upsert(ctx, posts))

	matches, err := f.index.Search(ctx, "golang golang golang", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, posts[0].ID, matches[0].PostID, "the oldest post is the closest")

	first := searchPosts(t, f, "golang golang golang", 0)
	ids := lo.Map(first, func(p models.PostLite, _ int) string { return p.ID })
	assert.Equal(t, []string{posts[1].ID, posts[0].ID}, ids)

	second := searchPosts(t, f, "golang golang golang", 1)
	require.Len(t, second, 1)
	assert.Equal(t, posts[2].ID, second[0].ID)

	assert.Empty(t, searchPosts(t, f, "golang golang golang", 2))
}

func TestSearch_RequiresPrompt(t *testing.T) {
	f := newFixture(t)
	err := f.do(t, func(sc *Scope) error {
		_, err := sc.Search.Posts(context.Background(), "  ", 0)
		return err
	})
	requireCode(t, err, models.CodeValidation)
}
