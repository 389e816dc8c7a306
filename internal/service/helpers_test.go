package service

import (
	"context"
	"testing"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/featureflags"
	"murmur/internal/models"
	"murmur/internal/storage"
	"murmur/internal/testutil"
	"murmur/internal/validation"
	"murmur/internal/vectorindex"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	passwordCost = bcrypt.MinCost
}

type fixture struct {
	cfg   *config.Config
	db    *gorm.DB
	mr    *miniredis.Miniredis
	index *vectorindex.MemoryIndex
	media *storage.Media
	svc   *Services
}

func newFixture(t *testing.T, tweaks ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Env = "test"
	cfg.VectorIndex = "memory"
	cfg.JWTSecret = "test-secret-that-is-long-enough-for-hs256"
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	posts, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	users, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	media := &storage.Media{Posts: posts, Users: users}

	index := vectorindex.NewMemoryIndex(vectorindex.NewHashingEmbedder(cfg.EmbeddingDimensions))
	return &fixture{
		cfg:   cfg,
		db:    db,
		mr:    mr,
		index: index,
		media: media,
		svc: NewServices(Deps{
			Config: cfg,
			DB:     db,
			Store:  cache.NewStore(rdb),
			Index:  index,
			Media:  media,
			Flags:  featureflags.NewManager(cfg.FeatureFlags),
		}),
	}
}

// do runs fn in a committed scope.
func (f *fixture) do(t *testing.T, fn func(sc *Scope) error) error {
	t.Helper()
	return f.svc.Do(context.Background(), fn)
}

func (f *fixture) register(t *testing.T, username string) (*models.User, *models.TokenPair) {
	t.Helper()
	var pair *models.TokenPair
	err := f.do(t, func(sc *Scope) error {
		var err error
		pair, err = sc.Users.Register(context.Background(), validation.RegisterRequest{
			Username: username,
			Email:    username + "@example.com",
			Password: "Abcdef12",
		})
		return err
	})
	require.NoError(t, err)
	user, err := f.svc.Auth.AuthorizeRequest(context.Background(), "Bearer "+pair.AccessToken)
	require.NoError(t, err)
	return user, pair
}

func (f *fixture) post(t *testing.T, owner *models.User, title, text string) *models.Post {
	t.Helper()
	var post *models.Post
	err := f.do(t, func(sc *Scope) error {
		var err error
		post, err = sc.Posts.Create(context.Background(), owner.ID, validation.CreatePostRequest{Title: title, Text: text})
		return err
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) rate(t *testing.T, postID string) int {
	t.Helper()
	var post models.Post
	require.NoError(t, f.db.First(&post, "post_id = ?", postID).Error)
	return post.PopularityRate
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}
