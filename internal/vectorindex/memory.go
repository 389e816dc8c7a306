package vectorindex

import (
	"context"
	"sort"
	"sync"

	"murmur/internal/models"
	"murmur/internal/observability"
)

type memoryEntry struct {
	rec    record
	vector []float32
}

// MemoryIndex is an in-process cosine index for tests and single-node runs.
type MemoryIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, entries: map[string]memoryEntry{}}
}

// Len reports how many posts are indexed.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Upsert(ctx context.Context, posts []models.Post) (err error) {
	done := observability.TrackIndex("upsert")
	defer func() { done(err) }()

	recs, err := records(posts)
	if err != nil {
		return err
	}
	docs := make([]string, len(recs))
	for i, r := range recs {
		docs[i] = r.document
	}
	vectors, err := m.embedder.Embed(ctx, docs)
	if err != nil {
		return models.NewIndexError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range recs {
		m.entries[r.id] = memoryEntry{rec: r, vector: vectors[i]}
	}
	return nil
}

func (m *MemoryIndex) QueryRelated(ctx context.Context, docs []string, n int, excludeUserID string) (matches []Match, err error) {
	done := observability.TrackIndex("query_related")
	defer func() { done(err) }()
	return m.query(ctx, docs, n, excludeUserID)
}

func (m *MemoryIndex) Search(ctx context.Context, prompt string, n int) (matches []Match, err error) {
	done := observability.TrackIndex("search")
	defer func() { done(err) }()
	return m.query(ctx, []string{prompt}, n, "")
}

func (m *MemoryIndex) query(ctx context.Context, docs []string, n int, excludeUserID string) ([]Match, error) {
	if len(docs) == 0 || n <= 0 {
		return []Match{}, nil
	}
	vectors, err := m.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, models.NewIndexError(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []Match
	for _, q := range vectors {
		hits := make([]Match, 0, len(m.entries))
		for _, e := range m.entries {
			if excludeUserID != "" && e.rec.userID == excludeUserID {
				continue
			}
			hits = append(hits, Match{
				PostID:    e.rec.id,
				UserID:    e.rec.userID,
				Published: e.rec.publish,
				Distance:  1 - cosine(q, e.vector),
			})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Distance != hits[j].Distance {
				return hits[i].Distance < hits[j].Distance
			}
			return hits[i].PostID < hits[j].PostID
		})
		if len(hits) > n {
			hits = hits[:n]
		}
		all = append(all, hits...)
	}
	return dedupe(all), nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]memoryEntry{}
	return nil
}
