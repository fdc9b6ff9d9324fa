package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
)

type Link struct {
	ReferralLink  string `json:"referralLink"`
	ReferralCount int    `json:"referralCount"`
}

type Referral struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Balance   int64  `json:"balance"`
}

type Service struct {
	store       domain.Store
	botUsername string
}

func NewService(store domain.Store, botUsername string) *Service {
	return &Service{store: store, botUsername: botUsername}
}

// Link returns the bot deep link that carries the caller's telegram id as the /start payload.
func (s *Service) Link(ctx context.Context, userID int64) (*Link, error) {
	var out *Link
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByID(ctx, userID)
		if err != nil {
			return userErr(userID, err)
		}
		out = &Link{
			ReferralLink:  fmt.Sprintf("https://t.me/%s?start=%d", s.botUsername, u.TelegramID),
			ReferralCount: u.ReferralCount,
		}
		return nil
	})
	return out, err
}

func (s *Service) List(ctx context.Context, userID int64) ([]Referral, error) {
	var out []Referral
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			return userErr(userID, err)
		}
		users, err := tx.UsersReferredBy(ctx, userID)
		if err != nil {
			return apperrors.NewDatabaseError("list referrals", err)
		}
		out = make([]Referral, 0, len(users))
		for _, u := range users {
			out = append(out, Referral{Username: u.DisplayName(), AvatarURL: u.AvatarURL, Balance: u.Balance})
		}
		return nil
	})
	return out, err
}

func userErr(userID int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewUserNotFoundError(userID)
	}
	return apperrors.NewDatabaseError("load user", err)
}
