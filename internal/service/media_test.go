package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

func upload(t *testing.T, f *fixture, userID, postID string, data []byte) error {
	t.Helper()
	return f.do(t, func(sc *Scope) error {
		_, err := sc.Media.UploadPostImage(context.Background(), userID, postID, data)
		return err
	})
}

func TestMedia_PostImageCap(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.MaxNumberPostImages = 2 })
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	p1 := f.post(t, alice, "pics", "text")

	requireCode(t, upload(t, f, bob.ID, p1.ID, pngBytes), models.CodeInvalidAction)
	require.NoError(t, upload(t, f, alice.ID, p1.ID, pngBytes))
	require.NoError(t, upload(t, f, alice.ID, p1.ID, pngBytes))
	requireCode(t, upload(t, f, alice.ID, p1.ID, pngBytes), models.CodeLimitReached)
}

func TestMedia_RejectsBadFiles(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.PostImageMaxSizeMB = 1 })
	alice, _ := f.register(t, "alice")
	p1 := f.post(t, alice, "pics", "text")

	requireCode(t, upload(t, f, alice.ID, p1.ID, nil), models.CodeValidation)
	requireCode(t, upload(t, f, alice.ID, p1.ID, []byte("just some text")), models.CodeValidation)
	requireCode(t, upload(t, f, alice.ID, p1.ID, []byte{0x00, 0x01, 0x02, 0xfe, 0xff}), models.CodeMedia)
	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 1<<20)...)
	requireCode(t, upload(t, f, alice.ID, p1.ID, big), models.CodeValidation)
}

func TestMedia_CapabilityRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")
	bob, _ := f.register(t, "bob")
	p1 := f.post(t, alice, "pics", "text")
	require.NoError(t, upload(t, f, alice.ID, p1.ID, pngBytes))

	full, err := getPost(t, f, bob.ID, p1.ID)
	require.NoError(t, err)
	require.Len(t, full.PictureURLs, 1)
	token := strings.TrimPrefix(full.PictureURLs[0], "/media/posts/")

	var img *Image
	require.NoError(t, f.do(t, func(sc *Scope) error {
		var err error
		img, err = sc.Media.Resolve(ctx, cache.PostImage, token)
		return err
	}))
	assert.Equal(t, "image/png", img.Mime)
	assert.Equal(t, pngBytes, img.Data)

	err = f.do(t, func(sc *Scope) error {
		_, err := sc.Media.Resolve(ctx, cache.PostImage, "unknown")
		return err
	})
	requireCode(t, err, models.CodeUnauthorized)

	f.mr.FastForward(f.cfg.ImageTTL())
	err = f.do(t, func(sc *Scope) error {
		_, err := sc.Media.Resolve(ctx, cache.PostImage, token)
		return err
	})
	requireCode(t, err, models.CodeUnauthorized)
}

func TestMedia_AvatarReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.register(t, "alice")

	require.NoError(t, f.do(t, func(sc *Scope) error { return sc.Media.UploadAvatar(ctx, alice, pngBytes) }))
	first := *alice.AvatarImageName
	require.NoError(t, f.do(t, func(sc *Scope) error { return sc.Media.UploadAvatar(ctx, alice, pngBytes) }))
	assert.NotEqual(t, first, *alice.AvatarImageName)

	_, err := f.media.Users.Get(ctx, first)
	assert.Error(t, err)
	_, err = f.media.Users.Get(ctx, *alice.AvatarImageName)
	assert.NoError(t, err)

	p := profile(t, f, alice.ID, alice.ID)
	require.NotNil(t, p.AvatarURL)
	assert.True(t, strings.HasPrefix(*p.AvatarURL, "/media/users/"))
}
