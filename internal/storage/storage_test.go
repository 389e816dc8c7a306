package storage

import (
	"context"
	"path/filepath"
	"testing"

	"murmur/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "posts"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a.png", []byte("png-bytes"), "image/png"))
	data, err := store.Get(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, store.Put(ctx, "a.png", []byte("replaced"), "image/png"))
	data, err = store.Get(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)

	require.NoError(t, store.Delete(ctx, "a.png", "never-existed.png"))
	_, err = store.Get(ctx, "a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.png", `dir\file.png`} {
		assert.Error(t, store.Put(ctx, name, []byte("x"), ""), name)
	}
}

func TestNew_Local(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.UseS3 = false
	cfg.MediaPostsPath = filepath.Join(dir, "posts")
	cfg.MediaUsersPath = filepath.Join(dir, "users")

	media, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, media.Posts)
	assert.IsType(t, &LocalStore{}, media.Users)
}
