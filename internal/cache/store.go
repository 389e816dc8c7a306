package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"murmur/internal/models"

	"github.com/redis/go-redis/v9"
)

// scanBatch bounds each SCAN round trip.
const scanBatch = 200

// Store exposes the ephemeral key namespaces. Every failure surfaces as an
// EPHEMERAL_ERROR AppError.
type Store struct {
	rdb redis.Cmdable
}

// NewStore wraps a Redis client.
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func ephemeral(op string, err error) error {
	return models.NewEphemeralError(fmt.Errorf("%s: %w", op, err))
}

// SaveJWT stores token -> userID under the kind's namespace.
func (s *Store) SaveJWT(ctx context.Context, kind TokenKind, token, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, tokenKey(kind, token), userID, ttl).Err(); err != nil {
		return ephemeral("save token", err)
	}
	return nil
}

// CheckJWTExistence reports whether the token is live.
func (s *Store) CheckJWTExistence(ctx context.Context, kind TokenKind, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, tokenKey(kind, token)).Result()
	if err != nil {
		return false, ephemeral("check token", err)
	}
	return n > 0, nil
}

// JWTOwner returns the user bound to a live token, or "" when absent.
func (s *Store) JWTOwner(ctx context.Context, kind TokenKind, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, tokenKey(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", ephemeral("read token", err)
	}
	return userID, nil
}

// TakeJWT atomically reads and deletes a one-time token.
func (s *Store) TakeJWT(ctx context.Context, kind TokenKind, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, tokenKey(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", ephemeral("take token", err)
	}
	return userID, nil
}

// DeleteJWT removes tokens of one kind.
func (s *Store) DeleteJWT(ctx context.Context, kind TokenKind, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = tokenKey(kind, t)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return ephemeral("delete token", err)
	}
	return nil
}

// GetTokensByUserID scans a namespace for tokens bound to userID.
func (s *Store) GetTokensByUserID(ctx context.Context, kind TokenKind, userID string) ([]string, error) {
	var (
		cursor uint64
		tokens []string
		prefix = string(kind)
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, ephemeral("scan tokens", err)
		}
		if len(keys) > 0 {
			values, err := s.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, ephemeral("read tokens", err)
			}
			for i, v := range values {
				if owner, ok := v.(string); ok && owner == userID {
					tokens = append(tokens, keys[i][len(prefix):])
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return tokens, nil
		}
	}
}

// DeleteTokensByUserID drops every token of the given kinds bound to userID.
func (s *Store) DeleteTokensByUserID(ctx context.Context, userID string, kinds ...TokenKind) error {
	for _, kind := range kinds {
		tokens, err := s.GetTokensByUserID(ctx, kind, userID)
		if err != nil {
			return err
		}
		if err := s.DeleteJWT(ctx, kind, tokens...); err != nil {
			return err
		}
	}
	return nil
}

// AddViewedPosts appends ids to the user's exclusion FIFO, keeps the newest
// capacity entries and refreshes the TTL.
func (s *Store) AddViewedPosts(ctx context.Context, userID string, postIDs []string, capacity int, ttl time.Duration) error {
	if len(postIDs) == 0 {
		return nil
	}
	key := viewedPostsKey(userID)
	values := make([]interface{}, len(postIDs))
	for i, id := range postIDs {
		values[i] = id
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-capacity), -1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return ephemeral("push viewed posts", err)
	}
	return nil
}

// GetViewedPosts returns the user's exclusion FIFO, oldest first.
func (s *Store) GetViewedPosts(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, viewedPostsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, ephemeral("read viewed posts", err)
	}
	return ids, nil
}

// SetViewTimeout opens the view de-duplication window for user and post.
func (s *Store) SetViewTimeout(ctx context.Context, userID, postID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, viewTimeoutKey(userID, postID), postID, ttl).Err(); err != nil {
		return ephemeral("set view timeout", err)
	}
	return nil
}

// OpenViewWindow sets the view timeout only if no window is open. It
// reports whether this call opened it, so concurrent views grant rate once.
func (s *Store) OpenViewWindow(ctx context.Context, userID, postID string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, viewTimeoutKey(userID, postID), postID, ttl).Result()
	if err != nil {
		return false, ephemeral("open view window", err)
	}
	return ok, nil
}

// HasViewTimeout reports whether a view window is open.
func (s *Store) HasViewTimeout(ctx context.Context, userID, postID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, viewTimeoutKey(userID, postID)).Result()
	if err != nil {
		return false, ephemeral("check view timeout", err)
	}
	return n > 0, nil
}

// DailyViews returns how many rate-granting views user gave post on day.
func (s *Store) DailyViews(ctx context.Context, userID, postID string, day time.Time) (int, error) {
	n, err := s.rdb.Get(ctx, dailyViewsKey(userID, postID, day.UTC().Format("20060102"))).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, ephemeral("read daily views", err)
	}
	return n, nil
}

// IncrDailyViews counts one rate-granting view for the day.
func (s *Store) IncrDailyViews(ctx context.Context, userID, postID string, day time.Time) error {
	key := dailyViewsKey(userID, postID, day.UTC().Format("20060102"))
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 24*time.Hour)
		return nil
	})
	if err != nil {
		return ephemeral("count daily view", err)
	}
	return nil
}

// SaveImageToken stores a capability token -> image name.
func (s *Store) SaveImageToken(ctx context.Context, kind ImageKind, token, imageName string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, imageKey(kind, token), imageName, ttl).Err(); err != nil {
		return ephemeral("save image token", err)
	}
	return nil
}

// ResolveImageToken returns the image behind a capability, or "" when unknown.
func (s *Store) ResolveImageToken(ctx context.Context, kind ImageKind, token string) (string, error) {
	name, err := s.rdb.Get(ctx, imageKey(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", ephemeral("resolve image token", err)
	}
	return name, nil
}

// AddPresence records a connection of userID in roomID.
func (s *Store) AddPresence(ctx context.Context, roomID, userID string) error {
	if err := s.rdb.RPush(ctx, presenceKey(roomID), userID).Err(); err != nil {
		return ephemeral("add presence", err)
	}
	return nil
}

// RemovePresence drops one connection entry of userID from roomID.
func (s *Store) RemovePresence(ctx context.Context, roomID, userID string) error {
	if err := s.rdb.LRem(ctx, presenceKey(roomID), 1, userID).Err(); err != nil {
		return ephemeral("remove presence", err)
	}
	return nil
}

// Presence lists user ids connected to roomID, one per connection.
func (s *Store) Presence(ctx context.Context, roomID string) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, presenceKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, ephemeral("read presence", err)
	}
	return ids, nil
}

// ClearPresence empties a room's presence list.
func (s *Store) ClearPresence(ctx context.Context, roomID string) error {
	if err := s.rdb.Del(ctx, presenceKey(roomID)).Err(); err != nil {
		return ephemeral("clear presence", err)
	}
	return nil
}

// ResetChatPagination rewinds the user's history cursor.
func (s *Store) ResetChatPagination(ctx context.Context, userID string) error {
	if err := s.rdb.Set(ctx, chatPaginationKey(userID), 0, 0).Err(); err != nil {
		return ephemeral("reset chat pagination", err)
	}
	return nil
}

// NextChatPage returns the page to serve and advances the cursor.
func (s *Store) NextChatPage(ctx context.Context, userID string) (int, error) {
	n, err := s.rdb.Incr(ctx, chatPaginationKey(userID)).Result()
	if err != nil {
		return 0, ephemeral("advance chat pagination", err)
	}
	return int(n) - 1, nil
}

// ChatPage reads the cursor without moving it.
func (s *Store) ChatPage(ctx context.Context, userID string) (int, error) {
	raw, err := s.rdb.Get(ctx, chatPaginationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, ephemeral("read chat pagination", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ephemeral("parse chat pagination", err)
	}
	return n, nil
}
