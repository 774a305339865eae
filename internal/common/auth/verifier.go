package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
)

const cacheKeyPrefix = "fra:auth:"

// Principal is a verified caller.
type Principal struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// TokenValidator checks a bearer token with the identity provider.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)
}

// Verifier validates bearer tokens and caches positive results in Redis,
// keyed by the token hash, for at most ttl and never past token expiry.
type Verifier struct {
	validator TokenValidator
	cache     redis.Cmdable
	ttl       time.Duration
	logger    logger.Logger
	now       func() time.Time
}

// NewVerifier builds a verifier. cache may be nil to disable caching.
func NewVerifier(validator TokenValidator, cache redis.Cmdable, ttl time.Duration, log logger.Logger) *Verifier {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Verifier{
		validator: validator,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.Component(log, "auth"),
		now:       time.Now,
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Verify returns the caller behind token or an UNAUTHENTICATED error.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, errors.NewUnauthenticatedError("missing bearer token")
	}
	key := cacheKey(token)

	if p := v.cached(ctx, key); p != nil {
		return p, nil
	}

	info, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeUnauthenticated {
			return nil, stdErr
		}
		v.logger.Warn("Token validation failed", map[string]interface{}{"error": err.Error()})
		return nil, errors.NewUnauthenticatedError("token could not be verified")
	}

	p := &Principal{Subject: info.Sub, Username: info.Username, Email: info.Email}
	ttl := v.ttl
	if info.Exp > 0 {
		p.ExpiresAt = time.Unix(info.Exp, 0).UTC()
		if left := p.ExpiresAt.Sub(v.now()); left < ttl {
			ttl = left
		}
	}
	if ttl > 0 {
		v.store(ctx, key, p, ttl)
	}
	return p, nil
}

func (v *Verifier) cached(ctx context.Context, key string) *Principal {
	if v.cache == nil {
		return nil
	}
	raw, err := v.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			v.logger.Warn("Token cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if !p.ExpiresAt.IsZero() && !p.ExpiresAt.After(v.now()) {
		return nil
	}
	return &p
}

func (v *Verifier) store(ctx context.Context, key string, p *Principal, ttl time.Duration) {
	if v.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, raw, ttl).Err(); err != nil {
		v.logger.Warn("Token cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
