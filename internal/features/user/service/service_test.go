package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/memory"
)

func seed(t *testing.T, store *memory.Store, fn func(ctx context.Context, tx domain.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error { return fn(ctx, tx) }))
}

func newUser(ctx context.Context, tx domain.Tx, tg int64, username string, balance int64) (*domain.User, error) {
	u := &domain.User{TelegramID: tg, Username: username, Balance: balance, Role: domain.RoleUser}
	return u, tx.CreateUser(ctx, u)
}

func TestMeIncludesPinnedItem(t *testing.T) {
	store := memory.NewStore()
	var uid, itemID int64
	seed(t, store, func(ctx context.Context, tx domain.Tx) error {
		u, err := newUser(ctx, tx, 1, "alice", 50)
		if err != nil {
			return err
		}
		it := &domain.Item{Name: "Gem", Price: 10, OwnerID: &u.ID}
		if err := tx.CreateItems(ctx, []*domain.Item{it}); err != nil {
			return err
		}
		u.PinnedItemID = &it.ID
		uid, itemID = u.ID, it.ID
		return tx.UpdateUser(ctx, u)
	})

	svc := NewService(store, 10)
	p, err := svc.Me(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Balance)
	require.NotNil(t, p.PinnedItem)
	assert.Equal(t, itemID, p.PinnedItem.ID)

	_, err = svc.Me(context.Background(), 999)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
}

func TestStats(t *testing.T) {
	store := memory.NewStore()
	var uid int64
	seed(t, store, func(ctx context.Context, tx domain.Tx) error {
		u, err := newUser(ctx, tx, 1, "alice", 0)
		if err != nil {
			return err
		}
		uid = u.ID
		items := []*domain.Item{{Name: "a", Price: 1, OwnerID: &u.ID}, {Name: "b", Price: 1, OwnerID: &u.ID}, {Name: "c", Price: 1}}
		if err := tx.CreateItems(ctx, items); err != nil {
			return err
		}
		task := &domain.Task{Title: "t", Reward: 5, Active: true}
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		code := &domain.RedeemableCode{Code: "X", Reward: 1, MaxUses: 5, Active: true}
		if err := tx.CreateCode(ctx, code); err != nil {
			return err
		}
		now := time.Now()
		if err := tx.InsertTaskCompletion(ctx, &domain.TaskCompletion{TaskID: task.ID, UserID: u.ID, CompletedAt: now}); err != nil {
			return err
		}
		return tx.InsertCodeUsage(ctx, &domain.CodeUsage{CodeID: code.ID, UserID: u.ID, UsedAt: now})
	})

	st, err := NewService(store, 10).Stats(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, Stats{TasksCompleted: 1, CodesActivated: 1, NFTsOwned: 2}, *st)
}

func TestLeaderboard(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, func(ctx context.Context, tx domain.Tx) error {
		for i, b := range []int64{10, 300, 50, 200} {
			name := ""
			if i > 0 {
				name = []string{"", "bob", "carol", "dave"}[i]
			}
			if _, err := newUser(ctx, tx, int64(i+1), name, b); err != nil {
				return err
			}
		}
		return nil
	})

	board, err := NewService(store, 3).Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []int64{300, 200, 50}, []int64{board[0].Balance, board[1].Balance, board[2].Balance})
	assert.Equal(t, "bob", board[0].Username)

	all, err := NewService(store, 0).Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "User", all[3].Username)
}

func TestUserDetailsListsOwnedItems(t *testing.T) {
	store := memory.NewStore()
	var uid int64
	seed(t, store, func(ctx context.Context, tx domain.Tx) error {
		u, err := newUser(ctx, tx, 1, "alice", 0)
		if err != nil {
			return err
		}
		uid = u.ID
		owned := &domain.Item{Name: "a", Price: 1, OwnerID: &u.ID}
		if err := tx.CreateItems(ctx, []*domain.Item{owned}); err != nil {
			return err
		}
		return tx.CreateAuction(ctx, &domain.Auction{ItemID: owned.ID, SellerID: u.ID, Price: 5, Status: domain.AuctionActive})
	})

	d, err := NewService(store, 10).UserDetails(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "alice", d.Username)
	assert.Len(t, d.Items, 1)

	_, err = NewService(store, 10).UserDetails(context.Background(), 404)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
}
