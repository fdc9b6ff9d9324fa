package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zagip/zagip-game/internal/common/cache"
	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/memory"
)

func TestPendingTrackAndClaimOnce(t *testing.T) {
	ctx := context.Background()
	p := NewPending(cache.NewMemoryKV(), time.Hour)

	require.NoError(t, p.Track(ctx, 100, 555))

	ref, ok, err := p.Claim(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(555), ref)

	_, ok, err = p.Claim(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingTrackOverwrites(t *testing.T) {
	ctx := context.Background()
	p := NewPending(cache.NewMemoryKV(), time.Hour)

	require.NoError(t, p.Track(ctx, 100, 1))
	require.NoError(t, p.Track(ctx, 100, 2))

	ref, ok, err := p.Claim(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), ref)
}

func TestPendingClear(t *testing.T) {
	ctx := context.Background()
	p := NewPending(cache.NewMemoryKV(), time.Hour)

	require.NoError(t, p.Track(ctx, 100, 1))
	require.NoError(t, p.Clear(ctx, 100))

	_, ok, err := p.Claim(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	p := NewPending(cache.NewMemoryKV(), time.Hour)
	require.NoError(t, p.Track(ctx, 100, 555))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := p.Claim(ctx, 100); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func seedUsers(t *testing.T, store domain.Store, users ...*domain.User) {
	t.Helper()
	require.NoError(t, store.InTx(context.Background(), func(tx domain.Tx) error {
		for _, u := range users {
			if err := tx.CreateUser(context.Background(), u); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestLinkAndList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	referrer := &domain.User{TelegramID: 555, Username: "boss", Role: domain.RoleUser, ReferralCount: 2}
	seedUsers(t, store, referrer)
	refID := referrer.ID
	seedUsers(t, store,
		&domain.User{TelegramID: 1, Username: "kid", Balance: 10, ReferredBy: &refID, Role: domain.RoleUser},
		&domain.User{TelegramID: 2, Balance: 20, ReferredBy: &refID, Role: domain.RoleUser},
		&domain.User{TelegramID: 3, Role: domain.RoleUser},
	)

	svc := NewService(store, "zagip_bot")

	link, err := svc.Link(ctx, refID)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/zagip_bot?start=555", link.ReferralLink)
	assert.Equal(t, 2, link.ReferralCount)

	list, err := svc.List(ctx, refID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{"kid", "User"}, []string{list[0].Username, list[1].Username})
}

func TestLinkUnknownUser(t *testing.T) {
	svc := NewService(memory.NewStore(), "zagip_bot")

	_, err := svc.Link(context.Background(), 42)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))

	_, err = svc.List(context.Background(), 42)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
}
