// Package ledger is the only place that changes a user's balance.
package ledger

import (
	"context"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
)

// Adjust applies delta to u inside tx and persists it. u must be a row the caller
// obtained from tx (normally through LockUsers). The balance never goes below zero.
func Adjust(ctx context.Context, tx domain.UserTx, u *domain.User, delta int64) error {
	next := u.Balance + delta
	if next < 0 {
		return apperrors.NewInsufficientFundsError(u.Balance, -delta)
	}

	prev := u.Balance
	u.Balance = next
	if err := tx.UpdateUser(ctx, u); err != nil {
		u.Balance = prev
		return apperrors.NewDatabaseError("update balance", err)
	}
	return nil
}

// Set overwrites the balance. Used by administrative corrections only.
func Set(ctx context.Context, tx domain.UserTx, u *domain.User, balance int64) error {
	if balance < 0 {
		return apperrors.NewValidationError("balance", "must not be negative")
	}
	return Adjust(ctx, tx, u, balance-u.Balance)
}
