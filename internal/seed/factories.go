// Package seed creates demo data for development databases and tests.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"murmur/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password123"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and by tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	costs models.CostTable
	faker *gofakeit.Faker
	rng   *rand.Rand
	hash  string

	// replies[owner+post] counts replies already left, for the devalued cost.
	replies map[string]int
}

// NewFactory creates a Factory bound to db. Actions are priced with costs.
func NewFactory(db *gorm.DB, costs models.CostTable, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:    db,
		opts:  opts,
		costs: costs,
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng:     rand.New(rand.NewSource(seed)),
		replies: map[string]int{},
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	if f.opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// BuildUser constructs a user without persisting it. n keeps usernames
// unique within one run.
func (f *Factory) BuildUser(n int, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(f.faker.FirstName())
	username := fmt.Sprintf("%s_%d", name, n)
	user := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@%s", username, f.faker.DomainName()),
		PasswordHash: hash,
		JoinedAt:     f.pastTime(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(n int, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(n, overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post for owner with a realistic publication time.
func (f *Factory) BuildPost(owner *models.User, overrides ...func(*models.Post)) *models.Post {
	published := f.pastTime()
	if published.Before(owner.JoinedAt) {
		published = owner.JoinedAt
	}
	post := &models.Post{
		OwnerID:       &owner.ID,
		Title:         strings.TrimSuffix(f.faker.Sentence(f.rng.Intn(5)+2), "."),
		Text:          f.faker.Paragraph(1, f.rng.Intn(3)+1, 12, " "),
		PublishedAt:   published,
		LastUpdatedAt: published,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in one statement.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.CreateInBatches(posts, 200).Error
}

// CreateReply persists a reply from owner to parent and records the reply
// action on the parent.
func (f *Factory) CreateReply(owner *models.User, parent *models.Post) (*models.Post, error) {
	reply := f.BuildPost(owner, func(p *models.Post) {
		p.ParentPostID = &parent.ID
		p.IsReply = true
		p.Title = "Re: " + parent.Title
		p.Text = f.faker.Sentence(f.rng.Intn(10) + 4)
		if p.PublishedAt.Before(parent.PublishedAt) {
			p.PublishedAt = parent.PublishedAt.Add(time.Minute)
			p.LastUpdatedAt = p.PublishedAt
		}
	})
	if err := f.db.Create(reply).Error; err != nil {
		return nil, err
	}
	if _, err := f.CreateAction(owner, parent, models.ActionReply); err != nil {
		return nil, err
	}
	return reply, nil
}

// CreateFollow persists follower -> followed.
func (f *Factory) CreateFollow(follower, followed *models.User) error {
	return f.db.Create(&models.Friendship{FollowerID: follower.ID, FollowedID: followed.ID}).Error
}

// CreateAction records one action and adds its cost to the post's rate.
// It returns the cost granted.
func (f *Factory) CreateAction(owner *models.User, post *models.Post, kind models.ActionKind) (int, error) {
	cost := f.costs.Base(kind)
	if kind == models.ActionReply {
		key := owner.ID + post.ID
		cost = f.costs.Cost(kind, f.replies[key])
		f.replies[key]++
	}

	action := &models.PostAction{OwnerID: owner.ID, PostID: post.ID, Action: kind}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		if cost == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).Where("post_id = ?", post.ID).
			UpdateColumn("popularity_rate", gorm.Expr("popularity_rate + ?", cost)).Error
	})
	if err != nil {
		return 0, err
	}
	post.PopularityRate += cost
	return cost, nil
}

// pastTime returns a moment within the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.rng.Int63n(int64(maxDays) * int64(24*time.Hour)))
	return time.Now().Add(-back).Truncate(time.Second)
}
