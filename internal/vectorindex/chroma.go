package vectorindex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"murmur/internal/models"
	"murmur/internal/observability"
)

// ChromaIndex talks to a Chroma server over its v1 REST API. Embeddings are
// computed client side so the server needs no embedding function.
type ChromaIndex struct {
	http       *http.Client
	baseURL    string
	collection string
	embedder   Embedder

	mu           sync.Mutex
	collectionID string
}

// NewChromaIndex creates the client. A nil httpClient uses a 10s timeout.
func NewChromaIndex(baseURL, collection string, embedder Embedder, httpClient *http.Client) *ChromaIndex {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ChromaIndex{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
	}
}

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaUpsert struct {
	IDs        []string                 `json:"ids"`
	Embeddings [][]float32              `json:"embeddings"`
	Metadatas  []map[string]interface{} `json:"metadatas"`
	Documents  []string                 `json:"documents"`
}

type chromaQuery struct {
	QueryEmbeddings [][]float32            `json:"query_embeddings"`
	NResults        int                    `json:"n_results"`
	Where           map[string]interface{} `json:"where,omitempty"`
	Include         []string               `json:"include"`
}

type chromaQueryResult struct {
	IDs       [][]string                 `json:"ids"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// Heartbeat checks the server is reachable.
func (c *ChromaIndex) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
}

func (c *ChromaIndex) Upsert(ctx context.Context, posts []models.Post) (err error) {
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
	vectors, err := c.embedder.Embed(ctx, docs)
	if err != nil {
		return models.NewIndexError(err)
	}

	body := chromaUpsert{
		IDs:        make([]string, len(recs)),
		Embeddings: vectors,
		Metadatas:  make([]map[string]interface{}, len(recs)),
		Documents:  docs,
	}
	for i, r := range recs {
		body.IDs[i] = r.id
		body.Metadatas[i] = map[string]interface{}{
			MetaPostID:    r.id,
			MetaPublished: r.publish,
			MetaUserID:    r.userID,
		}
	}
	return c.collectionCall(ctx, "upsert", body, nil)
}

func (c *ChromaIndex) QueryRelated(ctx context.Context, docs []string, n int, excludeUserID string) (matches []Match, err error) {
	done := observability.TrackIndex("query_related")
	defer func() { done(err) }()

	if len(docs) == 0 || n <= 0 {
		return []Match{}, nil
	}
	var where map[string]interface{}
	if excludeUserID != "" {
		where = map[string]interface{}{MetaUserID: map[string]interface{}{"$ne": excludeUserID}}
	}
	return c.query(ctx, docs, n, where)
}

func (c *ChromaIndex) Search(ctx context.Context, prompt string, n int) (matches []Match, err error) {
	done := observability.TrackIndex("search")
	defer func() { done(err) }()

	if n <= 0 {
		return []Match{}, nil
	}
	return c.query(ctx, []string{prompt}, n, nil)
}

func (c *ChromaIndex) query(ctx context.Context, docs []string, n int, where map[string]interface{}) ([]Match, error) {
	vectors, err := c.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, models.NewIndexError(err)
	}
	var res chromaQueryResult
	req := chromaQuery{
		QueryEmbeddings: vectors,
		NResults:        n,
		Where:           where,
		Include:         []string{"metadatas", "distances"},
	}
	if err := c.collectionCall(ctx, "query", req, &res); err != nil {
		return nil, err
	}

	var out []Match
	for q := range res.IDs {
		for i, id := range res.IDs[q] {
			m := Match{PostID: id}
			if q < len(res.Metadatas) && i < len(res.Metadatas[q]) {
				meta := res.Metadatas[q][i]
				m.UserID, _ = meta[MetaUserID].(string)
				if pub, ok := meta[MetaPublished].(float64); ok {
					m.Published = int64(pub)
				}
			}
			if q < len(res.Distances) && i < len(res.Distances[q]) {
				m.Distance = res.Distances[q][i]
			}
			out = append(out, m)
		}
	}
	return dedupe(out), nil
}

func (c *ChromaIndex) Delete(ctx context.Context, ids []string) (err error) {
	done := observability.TrackIndex("delete")
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	return c.collectionCall(ctx, "delete", map[string]interface{}{"ids": ids}, nil)
}

// Reset drops the whole collection. It is recreated on the next call.
func (c *ChromaIndex) Reset(ctx context.Context) (err error) {
	done := observability.TrackIndex("reset")
	defer func() { done(err) }()

	c.mu.Lock()
	c.collectionID = ""
	c.mu.Unlock()

	err = c.do(ctx, http.MethodDelete, "/api/v1/collections/"+url.PathEscape(c.collection), nil, nil)
	if models.IsCode(err, models.CodeNotFound) {
		return nil
	}
	return err
}

func (c *ChromaIndex) collectionCall(ctx context.Context, op string, body, out interface{}) error {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/v1/collections/"+id+"/"+op, body, out)
}

func (c *ChromaIndex) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}
	var col chromaCollection
	req := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
		"metadata":      map[string]interface{}{"hnsw:space": "cosine"},
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", req, &col); err != nil {
		return "", err
	}
	if col.ID == "" {
		return "", models.NewIndexError(fmt.Errorf("chroma: collection %q has no id", c.collection))
	}
	c.collectionID = col.ID
	return col.ID, nil
}

func (c *ChromaIndex) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return models.NewIndexError(fmt.Errorf("chroma: marshal request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return models.NewIndexError(fmt.Errorf("chroma: build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewIndexError(fmt.Errorf("chroma: %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewIndexError(fmt.Errorf("chroma: read response: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return models.NewNotFoundError("collection", c.collection)
	}
	if resp.StatusCode >= 300 {
		return models.NewIndexError(fmt.Errorf("chroma: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return models.NewIndexError(fmt.Errorf("chroma: decode response: %w", err))
		}
	}
	return nil
}
