// Package vectorindex mirrors non-reply posts into a semantic index keyed by
// post id. The mirror is best effort and may lag the relational store.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"murmur/internal/config"
	"murmur/internal/models"

	"github.com/samber/lo"
)

// ErrEmptyPosts is returned by Upsert when nothing indexable was passed.
var ErrEmptyPosts = errors.New("vectorindex: no indexable posts")

// Metadata keys stored alongside each embedding.
const (
	MetaPostID    = "post_id"
	MetaPublished = "published"
	MetaUserID    = "user_id"
)

// Match is one hit returned by the index.
type Match struct {
	PostID    string
	UserID    string
	Published int64
	Distance  float64
}

// Index is the vector store contract used by the feed and search.
type Index interface {
	Upsert(ctx context.Context, posts []models.Post) error
	QueryRelated(ctx context.Context, docs []string, n int, excludeUserID string) ([]Match, error)
	Search(ctx context.Context, prompt string, n int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	Reset(ctx context.Context) error
}

type record struct {
	id       string
	document string
	userID   string
	publish  int64
}

// Document is the text embedded for a post.
func Document(p models.Post) string {
	return fmt.Sprintf("%s %s %d", p.Title, p.Text, p.PublishedAt.Unix())
}

func records(posts []models.Post) ([]record, error) {
	out := make([]record, 0, len(posts))
	for _, p := range posts {
		if p.IsReply {
			continue
		}
		owner := ""
		if p.OwnerID != nil {
			owner = *p.OwnerID
		}
		out = append(out, record{id: p.ID, document: Document(p), userID: owner, publish: p.PublishedAt.Unix()})
	}
	if len(out) == 0 {
		return nil, ErrEmptyPosts
	}
	return out, nil
}

// Extract orders matches by publication time, newest first, drops excluded
// and duplicate ids and truncates to quota. The result only depends on its
// inputs.
func Extract(matches []Match, exclude []string, quota int) []string {
	skip := lo.SliceToMap(exclude, func(id string) (string, struct{}) { return id, struct{}{} })
	kept := lo.Filter(matches, func(m Match, _ int) bool {
		_, excluded := skip[m.PostID]
		return !excluded
	})
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Published != kept[j].Published {
			return kept[i].Published > kept[j].Published
		}
		return kept[i].PostID < kept[j].PostID
	})
	ids := lo.Uniq(lo.Map(kept, func(m Match, _ int) string { return m.PostID }))
	if quota >= 0 && len(ids) > quota {
		ids = ids[:quota]
	}
	return ids
}

// dedupe keeps the closest hit per post across several query documents.
func dedupe(matches []Match) []Match {
	best := map[string]Match{}
	order := []string{}
	for _, m := range matches {
		prev, seen := best[m.PostID]
		if !seen {
			order = append(order, m.PostID)
		}
		if !seen || m.Distance < prev.Distance {
			best[m.PostID] = m
		}
	}
	out := make([]Match, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg *config.Config) Embedder {
	if cfg.Embedder == "openai" {
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbeddingModel, 0)
	}
	return NewHashingEmbedder(cfg.EmbeddingDimensions)
}

// New builds the configured index.
func New(cfg *config.Config) Index {
	embedder := NewEmbedder(cfg)
	if cfg.VectorIndex == "memory" {
		return NewMemoryIndex(embedder)
	}
	return NewChromaIndex(cfg.ChromaURL(), cfg.CollectionName(), embedder, nil)
}
