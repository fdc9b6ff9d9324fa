package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/memory"
)

func newUser(t *testing.T, store domain.Store, balance int64) int64 {
	t.Helper()
	u := &domain.User{TelegramID: balance + 1000, Balance: balance, Role: domain.RoleUser}
	require.NoError(t, store.InTx(context.Background(), func(tx domain.Tx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u.ID
}

func balanceOf(t *testing.T, store domain.Store, id int64) int64 {
	t.Helper()
	var b int64
	require.NoError(t, store.InTx(context.Background(), func(tx domain.Tx) error {
		u, err := tx.UserByID(context.Background(), id)
		if err != nil {
			return err
		}
		b = u.Balance
		return nil
	}))
	return b
}

func adjust(store domain.Store, id, delta int64) error {
	ctx := context.Background()
	return store.InTx(ctx, func(tx domain.Tx) error {
		users, err := tx.LockUsers(ctx, id)
		if err != nil {
			return err
		}
		return Adjust(ctx, tx, users[id], delta)
	})
}

func TestAdjustSpendWithinBalance(t *testing.T) {
	balances := []int64{0, 1, 100, 1000}
	for _, b := range balances {
		for _, s := range []int64{0, b / 2, b} {
			store := memory.NewStore()
			id := newUser(t, store, b)

			require.NoError(t, adjust(store, id, -s))
			assert.Equal(t, b-s, balanceOf(t, store, id), "b=%d s=%d", b, s)
		}
	}
}

func TestAdjustOverspendLeavesBalance(t *testing.T) {
	for _, b := range []int64{0, 1, 99} {
		store := memory.NewStore()
		id := newUser(t, store, b)

		err := adjust(store, id, -(b + 1))
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInsufficientFunds))
		assert.Equal(t, b, balanceOf(t, store, id))
	}
}

func TestAdjustCredit(t *testing.T) {
	store := memory.NewStore()
	id := newUser(t, store, 5)

	require.NoError(t, adjust(store, id, 300))
	assert.Equal(t, int64(305), balanceOf(t, store, id))
}

func TestSet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	id := newUser(t, store, 50)

	set := func(v int64) error {
		return store.InTx(ctx, func(tx domain.Tx) error {
			u, err := tx.UserByID(ctx, id)
			if err != nil {
				return err
			}
			return Set(ctx, tx, u, v)
		})
	}

	require.NoError(t, set(0))
	assert.Equal(t, int64(0), balanceOf(t, store, id))
	require.NoError(t, set(7))
	assert.Equal(t, int64(7), balanceOf(t, store, id))

	err := set(-1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	assert.Equal(t, int64(7), balanceOf(t, store, id))
}
