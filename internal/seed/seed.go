package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/vectorindex"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	PostsPerUser    int
	FollowsPerUser  int
	ActionsPerUser  int
	RepliesPerUser  int
	MaxDays         int
	RandomSeed      int64
	SkipBcrypt      bool
	ShouldClean     bool
	IndexBatchSize  int
	IndexAfterwards bool
}

// DefaultOptions is a small but connected social graph.
func DefaultOptions() Options {
	return Options{
		NumUsers:        20,
		PostsPerUser:    5,
		FollowsPerUser:  4,
		ActionsPerUser:  15,
		RepliesPerUser:  2,
		MaxDays:         30,
		IndexBatchSize:  100,
		IndexAfterwards: true,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users   int
	Posts   int
	Replies int
	Follows int
	Actions int
	Indexed int
}

// Seed populates db with users who post, follow each other and interact
// with posts. index may be nil; otherwise the seeded posts are upserted into
// it so search and the related feed source work right away.
func Seed(ctx context.Context, db *gorm.DB, index vectorindex.Index, costs models.CostTable, opts Options) (*Summary, error) {
	if opts.NumUsers < 2 {
		return nil, errors.New("seed: at least two users are required")
	}
	log := middleware.Logger
	log.InfoContext(ctx, "seeding database", "users", opts.NumUsers, "posts_per_user", opts.PostsPerUser)

	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		if index != nil {
			if err := index.Reset(ctx); err != nil {
				return nil, fmt.Errorf("reset index: %w", err)
			}
		}
	}

	f := NewFactory(db, costs, opts)
	summary := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser(i)
		if err != nil {
			return summary, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	summary.Users = len(users)

	posts := make([]*models.Post, 0, opts.NumUsers*opts.PostsPerUser)
	for _, user := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			posts = append(posts, f.BuildPost(user))
		}
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return summary, fmt.Errorf("create posts: %w", err)
	}
	summary.Posts = len(posts)

	for i, user := range users {
		for _, other := range pickOthers(f, users, i, opts.FollowsPerUser) {
			if err := f.CreateFollow(user, other); err != nil {
				return summary, fmt.Errorf("create follow: %w", err)
			}
			summary.Follows++
		}
	}

	if len(posts) > 0 {
		if err := seedInteractions(f, users, posts, opts, summary); err != nil {
			return summary, err
		}
	}

	now := time.Now()
	if err := db.Model(&models.Post{}).Where("1 = 1").UpdateColumn("last_rate_calculated_ts", now).Error; err != nil {
		return summary, fmt.Errorf("stamp rates: %w", err)
	}

	if index != nil && opts.IndexAfterwards {
		n, err := indexPosts(ctx, db, index, opts.IndexBatchSize)
		summary.Indexed = n
		if err != nil {
			return summary, fmt.Errorf("index posts: %w", err)
		}
	}

	log.InfoContext(ctx, "seeding completed",
		"users", summary.Users, "posts", summary.Posts, "replies", summary.Replies,
		"follows", summary.Follows, "actions", summary.Actions, "indexed", summary.Indexed)
	return summary, nil
}

func seedInteractions(f *Factory, users []*models.User, posts []*models.Post, opts Options, summary *Summary) error {
	kinds := []models.ActionKind{models.ActionView, models.ActionView, models.ActionView, models.ActionLike, models.ActionRepost}
	for _, user := range users {
		others := lo.Filter(posts, func(p *models.Post, _ int) bool { return !p.IsOwnedBy(user.ID) })
		if len(others) == 0 {
			continue
		}
		liked := map[string]bool{}
		for i := 0; i < opts.ActionsPerUser; i++ {
			post := others[f.rng.Intn(len(others))]
			kind := kinds[f.rng.Intn(len(kinds))]
			if kind != models.ActionView {
				// One like and one repost per user and post at most.
				key := string(kind) + post.ID
				if liked[key] {
					kind = models.ActionView
				}
				liked[key] = true
			}
			if _, err := f.CreateAction(user, post, kind); err != nil {
				return fmt.Errorf("create action: %w", err)
			}
			summary.Actions++
		}
		for i := 0; i < opts.RepliesPerUser; i++ {
			parent := others[f.rng.Intn(len(others))]
			if _, err := f.CreateReply(user, parent); err != nil {
				return fmt.Errorf("create reply: %w", err)
			}
			summary.Replies++
			summary.Actions++
		}
	}
	return nil
}

// pickOthers returns up to n distinct users other than users[self].
func pickOthers(f *Factory, users []*models.User, self, n int) []*models.User {
	others := make([]*models.User, 0, len(users)-1)
	for i, u := range users {
		if i != self {
			others = append(others, u)
		}
	}
	f.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	if n < len(others) {
		others = others[:n]
	}
	return others
}

func indexPosts(ctx context.Context, db *gorm.DB, index vectorindex.Index, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	total, after := 0, ""
	for {
		var posts []models.Post
		q := db.WithContext(ctx).Order("post_id").Limit(batch)
		if after != "" {
			q = q.Where("post_id > ?", after)
		}
		if err := q.Find(&posts).Error; err != nil {
			return total, err
		}
		if len(posts) == 0 {
			return total, nil
		}
		if err := index.Upsert(ctx, posts); err != nil {
			return total, err
		}
		total += len(posts)
		after = posts[len(posts)-1].ID
	}
}

// Clean deletes every row the seeder can create, children first.
func Clean(db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.Message{},
		&models.ChatParticipant{},
		&models.ChatRoom{},
		&models.PostAction{},
		&models.PostImage{},
		&models.Friendship{},
		&models.Post{},
		&models.User{},
	} {
		if err := all.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
