// Package service holds the business logic. A request opens a Scope on the
// Services aggregate, calls its façades and ends it with commit or rollback.
package service

import (
	"context"
	"errors"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/featureflags"
	"murmur/internal/middleware"
	"murmur/internal/repository"
	"murmur/internal/storage"
	"murmur/internal/validation"
	"murmur/internal/vectorindex"

	"gorm.io/gorm"
)

// Deps are the long-lived gateways shared by every request.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *cache.Store
	Index  vectorindex.Index
	Media  *storage.Media
	Tokens *cache.TokenCache
	Flags  *featureflags.Manager
}

// Services is the process-wide aggregate.
type Services struct {
	cfg    *config.Config
	db     *gorm.DB
	store  *cache.Store
	index  vectorindex.Index
	media  *storage.Media
	tokens *cache.TokenCache
	flags  *featureflags.Manager
	rules  validation.Rules
	Auth   *AuthService
}

// NewServices wires the aggregate.
func NewServices(d Deps) *Services {
	return &Services{
		cfg:    d.Config,
		db:     d.DB,
		store:  d.Store,
		index:  d.Index,
		media:  d.Media,
		tokens: d.Tokens,
		flags:  d.Flags,
		rules:  validation.RulesFrom(d.Config),
		Auth:   NewAuthService(d.DB, d.Store, d.Config),
	}
}

// Config exposes the configuration.
func (s *Services) Config() *config.Config { return s.cfg }

// Rules exposes the input bounds.
func (s *Services) Rules() validation.Rules { return s.rules }

// Scope binds the façades to one session. It is owned by a single request.
type Scope struct {
	ctx     context.Context
	session *repository.Session

	Users   *UserService
	Follows *FollowService
	Posts   *PostService
	Actions *ActionRecorder
	Feed    *FeedComposer
	Search  *SearchService
	Media   *MediaService
	Chats   *ChatService
}

// Begin opens a session and builds the façades on it.
func (s *Services) Begin(ctx context.Context) (*Scope, error) {
	session, err := repository.Begin(ctx, s.db)
	if err != nil {
		return nil, err
	}
	sc := &Scope{ctx: ctx, session: session}
	sc.Actions = &ActionRecorder{actions: session.Actions(), posts: session.Posts(), store: s.store, cfg: s.cfg, costs: s.cfg.Costs()}
	sc.Media = &MediaService{images: session.Images(), posts: session.Posts(), users: session.Users(), store: s.store, media: s.media, tokens: s.tokens, cfg: s.cfg}
	sc.Posts = &PostService{posts: session.Posts(), actions: session.Actions(), recorder: sc.Actions, media: sc.Media, index: s.index, rules: s.rules, cfg: s.cfg}
	sc.Feed = &FeedComposer{posts: session.Posts(), actions: session.Actions(), index: s.index, store: s.store, media: sc.Media, flags: s.flags, cfg: s.cfg}
	sc.Search = &SearchService{posts: session.Posts(), users: session.Users(), index: s.index, media: sc.Media, cfg: s.cfg}
	sc.Follows = &FollowService{friends: session.Friends(), users: session.Users(), media: sc.Media, cfg: s.cfg}
	sc.Users = &UserService{users: session.Users(), auth: s.Auth, media: sc.Media, rules: s.rules, cfg: s.cfg}
	sc.Chats = &ChatService{chats: session.Chats(), users: session.Users(), auth: s.Auth, store: s.store, media: sc.Media, rules: s.rules, cfg: s.cfg}
	return sc, nil
}

// End commits or rolls back the session. It is safe to call twice.
func (sc *Scope) End(commit bool) error {
	if commit {
		if err := sc.session.Commit(); err != nil {
			_ = sc.session.Close()
			return err
		}
		return nil
	}
	return sc.session.Rollback()
}

// Do runs fn in a fresh scope, committing when fn succeeds.
func (s *Services) Do(ctx context.Context, fn func(*Scope) error) (err error) {
	sc, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sc.End(false)
			panic(p)
		}
	}()

	if err := fn(sc); err != nil {
		if rbErr := sc.End(false); rbErr != nil {
			middleware.Logger.WarnContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}
	return sc.End(true)
}

// bestEffort logs failures of operations that must not fail the request.
func bestEffort(ctx context.Context, op string, err error) {
	if err == nil || errors.Is(err, vectorindex.ErrEmptyPosts) {
		return
	}
	middleware.Logger.WarnContext(ctx, "best-effort operation failed", "operation", op, "error", err)
}
