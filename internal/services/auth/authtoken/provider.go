// Package authtoken is the local authentication provider: it issues HS256
// session tokens, keeps the current one in the local cache and records
// revocations in the remote record store.
package authtoken

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/messenger/internal/platform/bus"
	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/platform/id"
	"github.com/louisbranch/messenger/internal/services/records"
	"github.com/louisbranch/messenger/internal/storage/kv"
)

// TokenKey is the cache key holding the current session token.
const TokenKey = "auth_token"

// RevokedTokensPath is the record subtree holding revoked token ids.
const RevokedTokensPath = "revoked_tokens"

// User is the authenticated account.
type User struct {
	Email string
}

// Publisher delivers bus notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// sessionClaims is the token payload.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Provider signs users in and out.
type Provider struct {
	cfg       Config
	cache     kv.Cache
	records   records.Store
	publisher Publisher
	newID     func() (string, error)
}

// New builds a Provider. publisher may be nil.
func New(cfg Config, cache kv.Cache, store records.Store, publisher Publisher) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, errors.New("token cache is required")
	}
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{
		cfg:       cfg,
		cache:     cache,
		records:   store,
		publisher: publisher,
		newID:     id.NewID,
	}, nil
}

// SignIn issues and stores a token for email and publishes login completion.
func (p *Provider) SignIn(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, apperrors.New(apperrors.CodeEmailRequired, "email is required")
	}
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return User{}, apperrors.WithMetadata(apperrors.CodeEmailInvalid, "email is invalid", map[string]string{"Email": email})
	}

	tokenID, err := p.newID()
	if err != nil {
		return User{}, fmt.Errorf("generate token id: %w", err)
	}
	now := p.cfg.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   email,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Key)
	if err != nil {
		return User{}, fmt.Errorf("sign token: %w", err)
	}
	if err := p.cache.Set(TokenKey, signed); err != nil {
		return User{}, fmt.Errorf("store token: %w", err)
	}

	user := User{Email: email}
	if p.publisher != nil {
		p.publisher.Publish(ctx, bus.TopicLoginCompleted, bus.LoginCompleted{Email: email})
	}
	return user, nil
}

// CurrentUser returns the user of the stored token. A missing, expired or
// otherwise invalid token means no user.
func (p *Provider) CurrentUser(ctx context.Context) (User, bool, error) {
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}
	token, ok, err := p.cache.Get(TokenKey)
	if err != nil {
		return User{}, false, fmt.Errorf("load token: %w", err)
	}
	if !ok {
		return User{}, false, nil
	}
	claims, err := p.parse(token, true)
	if err != nil {
		log.Printf("auth token rejected: %v", err)
		return User{}, false, nil
	}
	return User{Email: claims.Email}, true, nil
}

// SignOut records the current token as revoked and then removes it locally.
// When the remote write fails the local token is kept and the error returned.
func (p *Provider) SignOut(ctx context.Context) error {
	token, ok, err := p.cache.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if !ok {
		return nil
	}

	claims, err := p.parse(token, false)
	if err == nil && claims.ID != "" {
		revocation := map[string]any{
			"email":      claims.Email,
			"revoked_at": p.cfg.Now().UTC().Format(time.RFC3339),
		}
		if err := p.records.Set(ctx, records.Join(RevokedTokensPath, claims.ID), revocation); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}

	if err := p.cache.Remove(TokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func (p *Provider) parse(token string, validateClaims bool) (sessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if validateClaims {
		options = append(options,
			jwt.WithIssuer(p.cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(p.cfg.Now),
		)
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.cfg.Key, nil
	}, options...)
	if err != nil {
		return sessionClaims{}, mapJWTError(err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return sessionClaims{}, apperrors.New(apperrors.CodeUnauthenticated, "token email is required")
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token issuer mismatch", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is invalid", err)
	}
}
