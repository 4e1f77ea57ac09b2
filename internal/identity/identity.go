// Package identity превращает bearer-токен в стабильный идентификатор пользователя
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DevUserHeader заголовок для локальной разработки, работает только при AllowUnverified
const DevUserHeader = "X-Dev-User-Id"

var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	Secret          string
	CacheTTL        time.Duration
	AllowUnverified bool
}

// Resolver проверяет HS256-токены, sub - uuid пользователя. Результат кэшируется по хэшу токена.
type Resolver struct {
	secret          []byte
	ttl             time.Duration
	allowUnverified bool
	cache           Cache
	logger          *zap.Logger
	now             func() time.Time
}

func NewResolver(cfg Config, cache Cache, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{
		secret:          []byte(cfg.Secret),
		ttl:             cfg.CacheTTL,
		allowUnverified: cfg.AllowUnverified,
		cache:           cache,
		logger:          logger,
		now:             time.Now,
	}
}

// Resolve пустой заголовок - аноним (uuid.Nil), неверный токен - ErrInvalidToken
func (r *Resolver) Resolve(ctx context.Context, authorization, devUser string) (uuid.UUID, error) {
	if r.allowUnverified && devUser != "" {
		id, err := uuid.Parse(devUser)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: bad %s", ErrInvalidToken, DevUserHeader)
		}
		return id, nil
	}

	token := bearerToken(authorization)
	if token == "" {
		return uuid.Nil, nil
	}

	key := tokenKey(token)
	if id, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("Auth cache read failed", zap.Error(err))
	} else if ok {
		return id, nil
	}

	id, exp, err := r.verify(token)
	if err != nil {
		return uuid.Nil, err
	}

	ttl := r.ttl
	if !exp.IsZero() {
		ttl = min(ttl, exp.Sub(r.now()))
	}
	if ttl > 0 {
		if err := r.cache.Set(ctx, key, id, ttl); err != nil {
			r.logger.Warn("Auth cache write failed", zap.Error(err))
		}
	}
	return id, nil
}

func (r *Resolver) verify(token string) (uuid.UUID, time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return id, exp, nil
}

// Issue выпускает токен; используется в тестах и для локальной разработки
func Issue(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
