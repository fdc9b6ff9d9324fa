// Package service credits one-time rewards: redeemable codes and tasks.
// The credit and the usage row are written in the same transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/ledger"
)

type Receipt struct {
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
	Reward     int64  `json:"reward"`
}

// TaskView is an active task annotated for the caller.
type TaskView struct {
	domain.Task
	Completed bool `json:"completed"`
}

type Service struct {
	store domain.Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(store domain.Store) *Service {
	return &Service{store: store, now: time.Now, log: logger.Component("redemption")}
}

func (s *Service) RedeemCode(ctx context.Context, userID int64, code string) (*Receipt, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("code", "must not be empty")
	}

	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		users, err := tx.LockUsers(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewUserNotFoundError(userID)
		}
		if err != nil {
			return err
		}
		u := users[userID]

		c, err := tx.LockCodeByValue(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewCodeNotFoundError(code)
		}
		if err != nil {
			return err
		}
		if !c.Active {
			return apperrors.NewCodeNotFoundError(code)
		}
		if c.Exhausted() {
			return apperrors.NewCodeExhaustedError(code)
		}
		used, err := tx.HasCodeUsage(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if used {
			return apperrors.NewAlreadyRedeemedError(code)
		}

		if err := ledger.Adjust(ctx, tx, u, c.Reward); err != nil {
			return err
		}
		if err := tx.UpdateCodeUses(ctx, c.ID, c.CurrentUses+1); err != nil {
			return err
		}
		err = tx.InsertCodeUsage(ctx, &domain.CodeUsage{CodeID: c.ID, UserID: userID, UsedAt: s.now()})
		if errors.Is(err, domain.ErrDuplicate) {
			return apperrors.NewAlreadyRedeemedError(code)
		}
		if err != nil {
			return err
		}

		r = &Receipt{
			Message:    fmt.Sprintf("Code redeemed, +%d coins", c.Reward),
			NewBalance: u.Balance,
			Reward:     c.Reward,
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("redeem code", err)
	}
	s.log.Info().Int64("user_id", userID).Str("code", code).Int64("reward", r.Reward).Msg("Code redeemed")
	return r, nil
}

func (s *Service) CompleteTask(ctx context.Context, userID, taskID int64) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		users, err := tx.LockUsers(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewUserNotFoundError(userID)
		}
		if err != nil {
			return err
		}
		u := users[userID]

		task, err := tx.TaskByID(ctx, taskID)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewTaskNotFoundError(taskID)
		}
		if err != nil {
			return err
		}
		if !task.Active {
			return apperrors.NewTaskNotFoundError(taskID)
		}
		done, err := tx.HasTaskCompletion(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if done {
			return apperrors.NewAlreadyCompletedError(taskID)
		}

		if err := ledger.Adjust(ctx, tx, u, task.Reward); err != nil {
			return err
		}
		err = tx.InsertTaskCompletion(ctx, &domain.TaskCompletion{TaskID: taskID, UserID: userID, CompletedAt: s.now()})
		if errors.Is(err, domain.ErrDuplicate) {
			return apperrors.NewAlreadyCompletedError(taskID)
		}
		if err != nil {
			return err
		}

		r = &Receipt{
			Message:    fmt.Sprintf("Task completed, +%d coins", task.Reward),
			NewBalance: u.Balance,
			Reward:     task.Reward,
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("complete task", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("task_id", taskID).Int64("reward", r.Reward).Msg("Task completed")
	return r, nil
}

// Tasks lists active tasks with the caller's completion flag.
func (s *Service) Tasks(ctx context.Context, userID int64) ([]TaskView, error) {
	var out []TaskView
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		tasks, err := tx.Tasks(ctx, true)
		if err != nil {
			return err
		}
		out = make([]TaskView, 0, len(tasks))
		for _, t := range tasks {
			done, err := tx.HasTaskCompletion(ctx, t.ID, userID)
			if err != nil {
				return err
			}
			out = append(out, TaskView{Task: *t, Completed: done})
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.NewDatabaseError(op, err)
}
