package vectorindex

import (
	"context"
	"testing"
	"time"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id, owner, title, text string, published time.Time) models.Post {
	return models.Post{ID: id, OwnerID: &owner, Title: title, Text: text, PublishedAt: published}
}

func TestExtract(t *testing.T) {
	matches := []Match{
		{PostID: "a", Published: 10},
		{PostID: "b", Published: 30},
		{PostID: "c", Published: 20},
		{PostID: "b", Published: 30},
		{PostID: "d", Published: 30},
	}

	tests := []struct {
		name    string
		exclude []string
		quota   int
		want    []string
	}{
		{"orders by published desc", nil, 10, []string{"b", "d", "c", "a"}},
		{"drops excluded", []string{"b"}, 10, []string{"d", "c", "a"}},
		{"truncates", nil, 2, []string{"b", "d"}},
		{"zero quota", nil, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(matches, tt.exclude, tt.quota)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, Extract(matches, []string{"a"}, 3), Extract(matches, []string{"a"}, 3), "extraction is deterministic")
}

func TestDocumentAndRecords(t *testing.T) {
	published := time.Unix(1700000000, 0)
	p := post("p1", "u1", "hello", "world", published)
	assert.Equal(t, "hello world 1700000000", Document(p))

	reply := post("r1", "u1", "re", "reply", published)
	reply.IsReply = true

	recs, err := records([]models.Post{p, reply})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].id)
	assert.Equal(t, "u1", recs[0].userID)

	_, err = records([]models.Post{reply})
	assert.ErrorIs(t, err, ErrEmptyPosts)
	_, err = records(nil)
	assert.ErrorIs(t, err, ErrEmptyPosts)
}

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"golang concurrency patterns", "Golang concurrency", "banana bread recipe", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Len(t, vecs[0], 64)

	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[0]), 1e-6)
	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
	assert.Zero(t, cosine(vecs[0], vecs[3]), "empty text embeds to the zero vector")

	again, err := e.Embed(context.Background(), []string{"golang concurrency patterns"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0])
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(NewHashingEmbedder(128))
	now := time.Now()

	err := idx.Upsert(ctx, []models.Post{
		post("go1", "alice", "go channels", "select over channels in go", now),
		post("go2", "bob", "go generics", "type parameters in go", now.Add(time.Minute)),
		post("cake", "bob", "lemon cake", "bake the lemon cake slowly", now),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search(ctx, "lemon cake", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cake", hits[0].PostID)

	related, err := idx.QueryRelated(ctx, []string{"go channels", "go generics"}, 3, "alice")
	require.NoError(t, err)
	for _, m := range related {
		assert.NotEqual(t, "alice", m.UserID)
	}
	assert.Contains(t, Extract(related, nil, 3), "go2")

	require.NoError(t, idx.Delete(ctx, []string{"cake"}))
	hits, err = idx.Search(ctx, "lemon cake", 5)
	require.NoError(t, err)
	for _, m := range hits {
		assert.NotEqual(t, "cake", m.PostID)
	}

	require.NoError(t, idx.Reset(ctx))
	assert.Zero(t, idx.Len())
	assert.ErrorIs(t, idx.Upsert(ctx, nil), ErrEmptyPosts)
}
