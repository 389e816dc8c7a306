package cache

import (
	"context"
	"testing"
	"time"

	"murmur/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestJWTLifecycle(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJWT(ctx, AccessToken, "tok-a", "u1", time.Minute))
	require.NoError(t, s.SaveJWT(ctx, RefreshToken, "tok-r", "u1", time.Hour))

	assert.True(t, mr.Exists("acces-jwt-token:tok-a"))
	assert.True(t, mr.Exists("refresh-jwt-token:tok-r"))

	ok, err := s.CheckJWTExistence(ctx, AccessToken, "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)

	owner, err := s.JWTOwner(ctx, AccessToken, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	ok, err = s.CheckJWTExistence(ctx, RefreshToken, "tok-a")
	require.NoError(t, err)
	assert.False(t, ok, "namespaces must not overlap")

	mr.FastForward(2 * time.Minute)
	ok, err = s.CheckJWTExistence(ctx, AccessToken, "tok-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteJWT(ctx, RefreshToken, "tok-r"))
	owner, err = s.JWTOwner(ctx, RefreshToken, "tok-r")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestTakeJWTIsOneTime(t *testing.T) {
	_, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJWT(ctx, ChatToken, "c1", "u1", time.Minute))

	owner, err := s.TakeJWT(ctx, ChatToken, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	owner, err = s.TakeJWT(ctx, ChatToken, "c1")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestGetTokensByUserIDAndBulkDelete(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJWT(ctx, AccessToken, "a1", "u1", time.Minute))
	require.NoError(t, s.SaveJWT(ctx, AccessToken, "a2", "u1", time.Minute))
	require.NoError(t, s.SaveJWT(ctx, AccessToken, "b1", "u2", time.Minute))
	require.NoError(t, s.SaveJWT(ctx, RefreshToken, "r1", "u1", time.Minute))
	require.NoError(t, s.SaveJWT(ctx, ChatToken, "c1", "u1", time.Minute))

	tokens, err := s.GetTokensByUserID(ctx, AccessToken, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, tokens)

	require.NoError(t, s.DeleteTokensByUserID(ctx, "u1", TokenKinds...))

	assert.Equal(t, []string{"acces-jwt-token:b1"}, mr.Keys())
}

func TestViewedPostsFIFO(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddViewedPosts(ctx, "u1", []string{"p1", "p2", "p3"}, 4, time.Hour))
	require.NoError(t, s.AddViewedPosts(ctx, "u1", []string{"p4", "p5"}, 4, time.Hour))

	ids, err := s.GetViewedPosts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p4", "p5"}, ids)
	assert.Equal(t, time.Hour, mr.TTL("viewed-posts:u1"))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.AddViewedPosts(ctx, "u1", []string{"p6"}, 4, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("viewed-posts:u1"), "push refreshes ttl")

	require.NoError(t, s.AddViewedPosts(ctx, "u1", nil, 4, time.Hour))

	ids, err = s.GetViewedPosts(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestViewTimeoutAndDailyViews(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()
	day := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	open, err := s.HasViewTimeout(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, s.SetViewTimeout(ctx, "u1", "p1", time.Minute))
	assert.True(t, mr.Exists("view-timeout:u1-post:p1"))

	open, err = s.HasViewTimeout(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, s.IncrDailyViews(ctx, "u1", "p1", day))
	require.NoError(t, s.IncrDailyViews(ctx, "u1", "p1", day))
	n, err := s.DailyViews(ctx, "u1", "p1", day)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DailyViews(ctx, "u1", "p1", day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImageTokens(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveImageToken(ctx, PostImage, "t1", "img.png", time.Minute))
	assert.True(t, mr.Exists("post-image-acces:t1"))

	name, err := s.ResolveImageToken(ctx, PostImage, "t1")
	require.NoError(t, err)
	assert.Equal(t, "img.png", name)

	name, err = s.ResolveImageToken(ctx, UserImage, "t1")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestPresenceAndChatPagination(t *testing.T) {
	_, s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddPresence(ctx, "r1", "u1"))
	require.NoError(t, s.AddPresence(ctx, "r1", "u2"))
	require.NoError(t, s.AddPresence(ctx, "r1", "u1"))
	require.NoError(t, s.RemovePresence(ctx, "r1", "u1"))

	ids, err := s.Presence(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, ids)

	require.NoError(t, s.ClearPresence(ctx, "r1"))
	ids, err = s.Presence(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.ResetChatPagination(ctx, "u1"))
	for want := 0; want < 3; want++ {
		page, err := s.NextChatPage(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, page)
	}
	page, err := s.ChatPage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, page)
}

func TestStoreFailuresAreEphemeralErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewStore(rdb)
	mr.Close()

	_, err := s.CheckJWTExistence(context.Background(), AccessToken, "x")
	assert.True(t, models.IsCode(err, models.CodeEphemeral))
}

func TestTokenCacheRoundTrip(t *testing.T) {
	c, err := NewTokenCache(time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := c.Get(ctx, PostImage, "img.png")
	assert.False(t, ok)

	c.Set(ctx, PostImage, "img.png", "tok")
	assert.Eventually(t, func() bool {
		tok, ok := c.Get(ctx, PostImage, "img.png")
		return ok && tok == "tok"
	}, time.Second, 10*time.Millisecond)

	c.Forget(ctx, PostImage, "img.png")
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, PostImage, "img.png")
		return !ok
	}, time.Second, 10*time.Millisecond)

	var disabled *TokenCache
	disabled.Set(ctx, PostImage, "img.png", "tok")
	_, ok = disabled.Get(ctx, PostImage, "img.png")
	assert.False(t, ok)
}
