package service

import (
	"context"
	"sort"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/featureflags"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/vectorindex"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// FeedComposer assembles feed pages from the related, followed and fresh
// sources.
type FeedComposer struct {
	posts   repository.PostRepository
	actions repository.ActionRepository
	index   vectorindex.Index
	store   *cache.Store
	media   *MediaService
	flags   *featureflags.Manager
	cfg     *config.Config
}

// feedSources are the ids each source contributed, in request order.
type feedSources struct {
	related    []string
	followed   []string
	unrelevant []string
}

func (f feedSources) all() []string {
	out := make([]string, 0, len(f.related)+len(f.followed)+len(f.unrelevant))
	out = append(out, f.related...)
	out = append(out, f.followed...)
	return append(out, f.unrelevant...)
}

// Page composes one feed page for userID and remembers the delivered ids.
func (f *FeedComposer) Page(ctx context.Context, userID string, page int) ([]models.PostLite, error) {
	span, ctx := observability.NewSpan(ctx, "feed.page",
		attribute.String("user_id", userID), attribute.Int("page", page))
	defer span.End()
	start := time.Now()

	viewed, err := f.store.GetViewedPosts(ctx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	history, views, err := f.history(ctx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	state := "cold"
	var sources feedSources
	if len(views) > f.cfg.MinimumUserHistoryLength && f.flags.Enabled(featureflags.SemanticFeed, userID) {
		state = "warm"
		sources, err = f.warm(ctx, userID, history, viewed, page)
		if err != nil && models.IsCode(err, models.CodeIndex) {
			middleware.Logger.WarnContext(ctx, "vector index unavailable, composing cold feed", "error", err)
			state = "degraded"
			sources, err = f.cold(ctx, userID, viewed, page)
		}
	} else {
		sources, err = f.cold(ctx, userID, viewed, page)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.FeedSourceSize.WithLabelValues("related").Observe(float64(len(sources.related)))
	observability.FeedSourceSize.WithLabelValues("followed").Observe(float64(len(sources.followed)))
	observability.FeedSourceSize.WithLabelValues("unrelevant").Observe(float64(len(sources.unrelevant)))

	ids := lo.Uniq(sources.all())
	posts, err := f.posts.GetByIDs(ctx, ids)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	f.rank(posts)

	out, err := f.media.postLites(ctx, posts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	delivered := lo.Map(posts, func(p models.Post, _ int) string { return p.ID })
	if err := f.store.AddViewedPosts(ctx, userID, delivered, f.cfg.ExcludeMaxViewedPosts, f.cfg.ExcludeTTL()); err != nil {
		span.SetError(err)
		return nil, err
	}

	span.AddAttributes(attribute.String("user_state", state), attribute.Int("posts", len(out)))
	observability.FeedCompositionLatency.WithLabelValues(state).Observe(time.Since(start).Seconds())
	return out, nil
}

// history builds the query documents from the newest views and likes. The
// view count alone decides whether the user is warm.
func (f *FeedComposer) history(ctx context.Context, userID string) ([]string, []models.PostAction, error) {
	views, err := f.actions.GetUserActions(ctx, userID, models.ActionView, f.cfg.HistoryPostsToTakeIntoRelated, true)
	if err != nil {
		return nil, nil, err
	}
	likes, err := f.actions.GetUserActions(ctx, userID, models.ActionLike, f.cfg.LikedPostsToTakeIntoRelated, true)
	if err != nil {
		return nil, nil, err
	}
	seen := map[string]struct{}{}
	docs := []string{}
	for _, a := range append(append([]models.PostAction{}, views...), likes...) {
		if a.Post == nil {
			continue
		}
		if _, dup := seen[a.PostID]; dup {
			continue
		}
		seen[a.PostID] = struct{}{}
		docs = append(docs, vectorindex.Document(*a.Post))
	}
	return docs, views, nil
}

func (f *FeedComposer) warm(ctx context.Context, userID string, history, viewed []string, page int) (feedSources, error) {
	var out feedSources
	quota := f.cfg.FeedQuota()

	headroom := quota + len(viewed) + f.cfg.GetExtraChromaDBRelatedResults
	matches, err := f.index.QueryRelated(ctx, history, headroom, userID)
	if err != nil {
		return out, err
	}
	related := vectorindex.Extract(matches, viewed, f.cfg.MixHistoryPostsRelated)
	if len(related) > quota {
		related = related[:quota]
	}
	out.related = related

	exclude := append(append([]string{}, viewed...), out.related...)
	if out.followed, err = f.followedOrFresh(ctx, userID, exclude, page); err != nil {
		return out, err
	}
	exclude = append(exclude, out.followed...)
	if out.unrelevant, err = f.posts.GetFreshPosts(ctx, userID, exclude, page, quota); err != nil {
		return out, err
	}
	return out, nil
}

// cold replaces the related source with fresh posts and shifts the page of
// the later sources so they do not repeat the first one.
func (f *FeedComposer) cold(ctx context.Context, userID string, viewed []string, page int) (feedSources, error) {
	var out feedSources
	var err error
	quota := f.cfg.FeedQuota()

	if out.related, err = f.posts.GetFreshPosts(ctx, userID, viewed, page, quota); err != nil {
		return out, err
	}
	exclude := append(append([]string{}, viewed...), out.related...)
	if out.followed, err = f.followedOrFresh(ctx, userID, exclude, page+1); err != nil {
		return out, err
	}
	exclude = append(exclude, out.followed...)
	if out.unrelevant, err = f.posts.GetFreshPosts(ctx, userID, exclude, page+2, quota); err != nil {
		return out, err
	}
	return out, nil
}

func (f *FeedComposer) followedOrFresh(ctx context.Context, userID string, exclude []string, page int) ([]string, error) {
	quota := f.cfg.FeedQuota()
	ids, err := f.posts.GetFollowedPosts(ctx, userID, exclude, page, quota)
	if err != nil || len(ids) > 0 {
		return ids, err
	}
	return f.posts.GetFreshPosts(ctx, userID, exclude, page, quota)
}

// rank sorts by the blended popularity and recency score, highest first.
func (f *FeedComposer) rank(posts []models.Post) {
	score := func(p models.Post) float64 {
		return f.cfg.ShuffleByRate*float64(p.PopularityRate) + f.cfg.ShuffleByTimestamp*float64(p.PublishedAt.Unix())
	}
	sort.SliceStable(posts, func(i, j int) bool {
		si, sj := score(posts[i]), score(posts[j])
		if si != sj {
			return si > sj
		}
		return posts[i].ID < posts[j].ID
	})
}
