package service

import (
	"context"
	"errors"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
)

const defaultLeaderboardLimit = 100

// Profile is the caller's own view of their account.
type Profile struct {
	*domain.User
	PinnedItem *domain.Item `json:"pinnedNft,omitempty"`
}

type Stats struct {
	TasksCompleted int `json:"tasksCompleted"`
	CodesActivated int `json:"codesActivated"`
	NFTsOwned      int `json:"nftsOwned"`
}

// LeaderboardEntry is the public projection of a user on the leaderboard.
type LeaderboardEntry struct {
	ID         int64        `json:"id"`
	Username   string       `json:"username"`
	AvatarURL  string       `json:"avatarUrl,omitempty"`
	Balance    int64        `json:"balance"`
	PinnedItem *domain.Item `json:"pinnedNft,omitempty"`
}

type UserDetails struct {
	LeaderboardEntry
	Items []*domain.Item `json:"nfts"`
}

type Service struct {
	store            domain.Store
	leaderboardLimit int
}

func NewService(store domain.Store, leaderboardLimit int) *Service {
	if leaderboardLimit <= 0 {
		leaderboardLimit = defaultLeaderboardLimit
	}
	return &Service{store: store, leaderboardLimit: leaderboardLimit}
}

func (s *Service) Me(ctx context.Context, userID int64) (*Profile, error) {
	var out *Profile
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByID(ctx, userID)
		if err != nil {
			return userErr(userID, err)
		}
		pinned, err := pinnedItem(ctx, tx, u)
		if err != nil {
			return err
		}
		out = &Profile{User: u, PinnedItem: pinned}
		return nil
	})
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	var out Stats
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			return userErr(userID, err)
		}
		var err error
		if out.TasksCompleted, err = tx.CountTaskCompletionsByUser(ctx, userID); err != nil {
			return err
		}
		if out.CodesActivated, err = tx.CountCodeUsagesByUser(ctx, userID); err != nil {
			return err
		}
		owned, err := tx.ItemsOwnedBy(ctx, userID, false)
		if err != nil {
			return err
		}
		out.NFTsOwned = len(owned)
		return nil
	})
	if err != nil {
		return nil, storeErr("get stats", err)
	}
	return &out, nil
}

// Leaderboard lists users by balance, highest first.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		users, err := tx.TopUsersByBalance(ctx, s.leaderboardLimit)
		if err != nil {
			return err
		}
		out = make([]LeaderboardEntry, 0, len(users))
		for _, u := range users {
			pinned, err := pinnedItem(ctx, tx, u)
			if err != nil {
				return err
			}
			out = append(out, entry(u, pinned))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("get leaderboard", err)
	}
	return out, nil
}

// UserDetails returns a user's public card together with everything they own.
func (s *Service) UserDetails(ctx context.Context, userID int64) (*UserDetails, error) {
	var out *UserDetails
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByID(ctx, userID)
		if err != nil {
			return userErr(userID, err)
		}
		pinned, err := pinnedItem(ctx, tx, u)
		if err != nil {
			return err
		}
		items, err := tx.ItemsOwnedBy(ctx, userID, false)
		if err != nil {
			return err
		}
		out = &UserDetails{LeaderboardEntry: entry(u, pinned), Items: items}
		return nil
	})
	if err != nil {
		return nil, storeErr("get user details", err)
	}
	return out, nil
}

func entry(u *domain.User, pinned *domain.Item) LeaderboardEntry {
	return LeaderboardEntry{
		ID:         u.ID,
		Username:   u.DisplayName(),
		AvatarURL:  u.AvatarURL,
		Balance:    u.Balance,
		PinnedItem: pinned,
	}
}

// pinnedItem tolerates a dangling pin left by a concurrent delete.
func pinnedItem(ctx context.Context, tx domain.Tx, u *domain.User) (*domain.Item, error) {
	if u.PinnedItemID == nil {
		return nil, nil
	}
	it, err := tx.ItemByID(ctx, *u.PinnedItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return it, err
}

func userErr(userID int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewUserNotFoundError(userID)
	}
	return err
}

func storeErr(op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.NewDatabaseError(op, err)
}
