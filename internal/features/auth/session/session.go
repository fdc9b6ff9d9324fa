// Package session issues opaque bearer tokens after a successful Telegram bootstrap.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zagip/zagip-game/internal/common/cache"
	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
)

const keyPrefix = "session:"

type Session struct {
	UserID     int64       `json:"userId"`
	TelegramID int64       `json:"telegramId"`
	Role       domain.Role `json:"role"`
}

func (s Session) IsAdmin() bool {
	return s.Role == domain.RoleAdmin
}

type Store struct {
	kv  cache.KV
	ttl time.Duration
}

func NewStore(kv cache.KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

// Issue stores s under a fresh token and returns the token.
func (st *Store) Issue(ctx context.Context, s Session) (string, error) {
	token := uuid.NewString()
	if err := cache.SetJSON(ctx, st.kv, keyPrefix+token, s, st.ttl); err != nil {
		return "", apperrors.NewCacheError("issue session", err)
	}
	return token, nil
}

func (st *Store) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("missing bearer token")
	}

	var s Session
	err := cache.GetJSON(ctx, st.kv, keyPrefix+token, &s)
	switch {
	case errors.Is(err, cache.ErrMiss):
		return nil, apperrors.NewSessionExpiredError()
	case err != nil:
		return nil, apperrors.NewCacheError("resolve session", err)
	}
	return &s, nil
}

func (st *Store) Revoke(ctx context.Context, token string) error {
	if err := st.kv.Del(ctx, keyPrefix+token); err != nil {
		return apperrors.NewCacheError("revoke session", err)
	}
	return nil
}
