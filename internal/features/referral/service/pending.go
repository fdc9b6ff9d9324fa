package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/zagip/zagip-game/internal/common/cache"
	apperrors "github.com/zagip/zagip-game/internal/common/errors"
)

const pendingPrefix = "referral:pending:"

// Pending bridges a bot /start interaction and the referred user's first login.
// Entries live in the KV with a TTL and are consumed at most once.
type Pending struct {
	kv  cache.KV
	ttl time.Duration
}

func NewPending(kv cache.KV, ttl time.Duration) *Pending {
	return &Pending{kv: kv, ttl: ttl}
}

func pendingKey(telegramID int64) string {
	return pendingPrefix + strconv.FormatInt(telegramID, 10)
}

// Track records referrerTelegramID as the referrer of newTelegramID, replacing any earlier entry.
func (p *Pending) Track(ctx context.Context, newTelegramID, referrerTelegramID int64) error {
	val := []byte(strconv.FormatInt(referrerTelegramID, 10))
	if err := p.kv.Set(ctx, pendingKey(newTelegramID), val, p.ttl); err != nil {
		return apperrors.NewCacheError("track referral", err)
	}
	return nil
}

// Claim atomically removes and returns the pending referrer. ok is false when there is none.
func (p *Pending) Claim(ctx context.Context, telegramID int64) (referrerTelegramID int64, ok bool, err error) {
	raw, err := p.kv.GetDel(ctx, pendingKey(telegramID))
	if errors.Is(err, cache.ErrMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewCacheError("claim referral", err)
	}

	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// a corrupt entry is already gone; treat it as absent
		return 0, false, nil
	}
	return id, true, nil
}

func (p *Pending) Clear(ctx context.Context, telegramID int64) error {
	if err := p.kv.Del(ctx, pendingKey(telegramID)); err != nil {
		return apperrors.NewCacheError("clear referral", err)
	}
	return nil
}
