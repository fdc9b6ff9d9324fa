package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/memory"
)

func setup(t *testing.T, users int) (*memory.Store, *Service, []int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ids := make([]int64, users)
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error {
		for i := range ids {
			u := &domain.User{TelegramID: int64(i + 1), Role: domain.RoleUser}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			ids[i] = u.ID
		}
		return nil
	}))
	return store, NewService(store), ids
}

func addCode(t *testing.T, store *memory.Store, c *domain.RedeemableCode) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error { return tx.CreateCode(ctx, c) }))
}

func addTask(t *testing.T, store *memory.Store, task *domain.Task) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error { return tx.CreateTask(ctx, task) }))
}

func balance(t *testing.T, store *memory.Store, id int64) int64 {
	t.Helper()
	ctx := context.Background()
	var b int64
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByID(ctx, id)
		if err != nil {
			return err
		}
		b = u.Balance
		return nil
	}))
	return b
}

func codeUses(t *testing.T, store *memory.Store, code string) int {
	t.Helper()
	ctx := context.Background()
	var n int
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error {
		c, err := tx.LockCodeByValue(ctx, code)
		if err != nil {
			return err
		}
		n = c.CurrentUses
		return nil
	}))
	return n
}

func TestRedeemCode(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 2)
	addCode(t, store, &domain.RedeemableCode{Code: "WELCOME", Reward: 250, MaxUses: 5, Active: true})

	r, err := svc.RedeemCode(ctx, ids[0], "  WELCOME ")
	require.NoError(t, err)
	assert.Equal(t, int64(250), r.NewBalance)
	assert.Equal(t, int64(250), r.Reward)
	assert.Equal(t, 1, codeUses(t, store, "WELCOME"))

	_, err = svc.RedeemCode(ctx, ids[0], "WELCOME")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyRedeemed))
	assert.Equal(t, int64(250), balance(t, store, ids[0]))
	assert.Equal(t, 1, codeUses(t, store, "WELCOME"))

	_, err = svc.RedeemCode(ctx, ids[1], "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, 2, codeUses(t, store, "WELCOME"))
}

func TestRedeemCodeFailures(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 2)
	addCode(t, store, &domain.RedeemableCode{Code: "OFF", Reward: 1, MaxUses: 5, Active: false})
	addCode(t, store, &domain.RedeemableCode{Code: "ONCE", Reward: 1, MaxUses: 1, Active: true})

	tests := []struct {
		name string
		code string
		want apperrors.ErrorCode
	}{
		{"empty", " ", apperrors.ErrCodeValidation},
		{"unknown", "NOPE", apperrors.ErrCodeCodeNotFound},
		{"inactive", "OFF", apperrors.ErrCodeCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RedeemCode(ctx, ids[0], tt.code)
			assert.True(t, apperrors.HasCode(err, tt.want), "got %v", err)
		})
	}

	_, err := svc.RedeemCode(ctx, ids[0], "ONCE")
	require.NoError(t, err)
	_, err = svc.RedeemCode(ctx, ids[1], "ONCE")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCodeExhausted))
	assert.Equal(t, int64(0), balance(t, store, ids[1]))
}

func TestRedeemCodeConcurrentMaxUses(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 10)
	addCode(t, store, &domain.RedeemableCode{Code: "RUSH", Reward: 10, MaxUses: 3, Active: true})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, id := range ids {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if _, err := svc.RedeemCode(ctx, id, "RUSH"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, 3, wins)
	assert.Equal(t, 3, codeUses(t, store, "RUSH"))

	var total int64
	for _, id := range ids {
		b := balance(t, store, id)
		assert.LessOrEqual(t, b, int64(10), "a user redeemed twice")
		total += b
	}
	assert.Equal(t, int64(30), total)
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 1)
	task := &domain.Task{Title: "Join channel", Reward: 100, Active: true}
	addTask(t, store, task)
	off := &domain.Task{Title: "Old", Reward: 100, Active: false}
	addTask(t, store, off)

	views, err := svc.Tasks(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Completed)

	r, err := svc.CompleteTask(ctx, ids[0], task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), r.NewBalance)

	_, err = svc.CompleteTask(ctx, ids[0], task.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyCompleted))
	assert.Equal(t, int64(100), balance(t, store, ids[0]))

	_, err = svc.CompleteTask(ctx, ids[0], off.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTaskNotFound))

	_, err = svc.CompleteTask(ctx, ids[0], 999)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTaskNotFound))

	views, err = svc.Tasks(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, views[0].Completed)
}

func TestCompleteTaskConcurrentOnce(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 1)
	task := &domain.Task{Title: "Tap", Reward: 5, Active: true}
	addTask(t, store, task)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CompleteTask(ctx, ids[0], task.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), balance(t, store, ids[0]))
}
