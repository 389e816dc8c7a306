package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const bearerPrefix = "Bearer "

// AuthService mints and checks session tokens. A token is valid only while
// its key exists in the ephemeral store; the signature just proves origin.
type AuthService struct {
	db     *gorm.DB
	store  *cache.Store
	secret []byte
	ttls   map[cache.TokenKind]time.Duration
	now    func() time.Time
}

// NewAuthService creates the gateway. db is only used to load the user of
// an authorized request.
func NewAuthService(db *gorm.DB, store *cache.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		db:     db,
		store:  store,
		secret: []byte(cfg.JWTSecret),
		ttls: map[cache.TokenKind]time.Duration{
			cache.AccessToken:  cfg.AccessTTL(),
			cache.RefreshToken: cfg.RefreshTTL(),
			cache.ChatToken:    cfg.ChatTTL(),
		},
		now: time.Now,
	}
}

// Claims is the token payload.
type Claims struct {
	UserID   string
	IssuedAt time.Time
}

func (a *AuthService) encode(userID string, issued time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": issued.Unix(),
		"jti": uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", models.NewJWTError(err)
	}
	return token, nil
}

// Decode verifies the signature and returns the payload.
func (a *AuthService) Decode(raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, models.NewUnauthorizedError("invalid token subject")
	}
	out := &Claims{UserID: sub}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// GenerateSave mints a token of kind and stores it with its TTL.
func (a *AuthService) GenerateSave(ctx context.Context, userID string, kind cache.TokenKind) (string, time.Time, error) {
	now := a.now()
	token, err := a.encode(userID, now)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := a.ttls[kind]
	if err := a.store.SaveJWT(ctx, kind, token, userID, ttl); err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(ttl), nil
}

// Prepare strips the required "Bearer " prefix.
func Prepare(header string) (string, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", models.NewUnauthorizedError("missing bearer token")
	}
	return token, nil
}

// check verifies that token is live in kind's namespace and decodes it.
func (a *AuthService) check(ctx context.Context, kind cache.TokenKind, token string) (*Claims, error) {
	exists, err := a.store.CheckJWTExistence(ctx, kind, token)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewUnauthorizedError("token expired or revoked")
	}
	return a.Decode(token)
}

// AuthorizeRequest resolves an Authorization header to its user.
func (a *AuthService) AuthorizeRequest(ctx context.Context, header string) (*models.User, error) {
	token, err := Prepare(header)
	if err != nil {
		return nil, err
	}
	claims, err := a.check(ctx, cache.AccessToken, token)
	if err != nil {
		return nil, err
	}
	user, err := repository.NewUserRepository(a.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("token owner no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// IssuePair drops any pair the user already holds and mints a new one.
func (a *AuthService) IssuePair(ctx context.Context, userID string) (*models.TokenPair, error) {
	if err := a.store.DeleteTokensByUserID(ctx, userID, cache.AccessToken, cache.RefreshToken); err != nil {
		return nil, err
	}
	access, accessExp, err := a.GenerateSave(ctx, userID, cache.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := a.GenerateSave(ctx, userID, cache.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAtAccess:  accessExp,
		ExpiresAtRefresh: refreshExp,
	}, nil
}

// Refresh trades a live refresh token for a new access token. The user's old
// access tokens are revoked.
func (a *AuthService) Refresh(ctx context.Context, header string) (*models.AccessToken, error) {
	token, err := Prepare(header)
	if err != nil {
		return nil, err
	}
	claims, err := a.check(ctx, cache.RefreshToken, token)
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteTokensByUserID(ctx, claims.UserID, cache.AccessToken); err != nil {
		return nil, err
	}
	access, exp, err := a.GenerateSave(ctx, claims.UserID, cache.AccessToken)
	if err != nil {
		return nil, err
	}
	return &models.AccessToken{AccessToken: access, ExpiresAtAccess: exp}, nil
}

// Logout takes the access token from the header and revokes every token
// of its owner.
func (a *AuthService) Logout(ctx context.Context, header string) error {
	token, err := Prepare(header)
	if err != nil {
		return err
	}
	claims, err := a.check(ctx, cache.AccessToken, token)
	if err != nil {
		return err
	}
	return a.DeactivateTokensByID(ctx, claims.UserID)
}

// DeactivateTokensByID revokes every session and chat token of a user.
func (a *AuthService) DeactivateTokensByID(ctx context.Context, userID string) error {
	return a.store.DeleteTokensByUserID(ctx, userID, cache.TokenKinds...)
}

// ChatToken mints a one-time chat capability.
func (a *AuthService) ChatToken(ctx context.Context, userID string) (string, time.Time, error) {
	return a.GenerateSave(ctx, userID, cache.ChatToken)
}

// ConsumeChatToken resolves and deletes a chat capability.
func (a *AuthService) ConsumeChatToken(ctx context.Context, token string) (string, error) {
	userID, err := a.store.TakeJWT(ctx, cache.ChatToken, token)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", models.NewUnauthorizedError("chat token expired or already used")
	}
	if _, err := a.Decode(token); err != nil {
		return "", err
	}
	return userID, nil
}
