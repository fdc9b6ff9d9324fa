// Package service turns a verified Telegram profile into an internal user, creating
// it on first contact and attributing a pending referral exactly once.
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/auth/verifier"
	"github.com/zagip/zagip-game/internal/features/ledger"
)

// ReferralClaimer hands out a pending referrer at most once per telegram id.
type ReferralClaimer interface {
	Claim(ctx context.Context, telegramID int64) (referrerTelegramID int64, ok bool, err error)
}

type Options struct {
	ReferralBonus int64
	IsAdmin       func(telegramID int64) bool
}

type Resolver struct {
	store     domain.Store
	referrals ReferralClaimer
	opts      Options
	log       zerolog.Logger
}

type Result struct {
	User      *domain.User
	IsNewUser bool
}

func NewResolver(store domain.Store, referrals ReferralClaimer, opts Options) *Resolver {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	return &Resolver{store: store, referrals: referrals, opts: opts, log: logger.Component("identity")}
}

// Resolve maps p to a user. referrerTelegramID is an optional out-of-band referrer;
// a pending referral recorded by the bot takes precedence over it.
func (r *Resolver) Resolve(ctx context.Context, p verifier.Profile, referrerTelegramID *int64) (*Result, error) {
	existing, err := r.refreshExisting(ctx, p)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{User: existing}, nil
	}

	referrer, err := r.pickReferrer(ctx, p.TelegramID, referrerTelegramID)
	if err != nil {
		return nil, err
	}

	created, err := r.create(ctx, p, referrer)
	if err == nil {
		return &Result{User: created, IsNewUser: true}, nil
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return nil, r.unresolvable(err)
	}

	// lost a first-contact race: the row exists now
	r.log.Info().Int64("telegram_id", p.TelegramID).Msg("Concurrent first login, reusing existing user")
	var u *domain.User
	err = r.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		u, err = tx.UserByTelegramID(ctx, p.TelegramID)
		if err != nil {
			return err
		}
		r.applyProfile(u, p)
		if u.ReferredBy == nil && referrer != nil {
			if err := r.attribute(ctx, tx, u, *referrer); err != nil {
				return err
			}
		}
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, r.unresolvable(err)
	}
	return &Result{User: u}, nil
}

func (r *Resolver) refreshExisting(ctx context.Context, p verifier.Profile) (*domain.User, error) {
	var u *domain.User
	err := r.store.InTx(ctx, func(tx domain.Tx) error {
		found, err := tx.UserByTelegramID(ctx, p.TelegramID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.applyProfile(found, p) {
			if err := tx.UpdateUser(ctx, found); err != nil {
				return err
			}
		}
		u = found
		return nil
	})
	if err != nil {
		return nil, r.unresolvable(err)
	}
	return u, nil
}

func (r *Resolver) pickReferrer(ctx context.Context, telegramID int64, outOfBand *int64) (*int64, error) {
	pending, ok, err := r.referrals.Claim(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if ok {
		return &pending, nil
	}
	return outOfBand, nil
}

func (r *Resolver) create(ctx context.Context, p verifier.Profile, referrer *int64) (*domain.User, error) {
	u := &domain.User{TelegramID: p.TelegramID, Role: domain.RoleUser}
	r.applyProfile(u, p)

	err := r.store.InTx(ctx, func(tx domain.Tx) error {
		if referrer != nil {
			if err := r.attribute(ctx, tx, u, *referrer); err != nil {
				return err
			}
		}
		return tx.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// attribute links u to the referrer and grants the bonus. Self referrals and unknown
// referrers are ignored.
func (r *Resolver) attribute(ctx context.Context, tx domain.Tx, u *domain.User, referrerTelegramID int64) error {
	if referrerTelegramID == u.TelegramID {
		return nil
	}

	ref, err := tx.UserByTelegramID(ctx, referrerTelegramID)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Warn().Int64("referrer_telegram_id", referrerTelegramID).Msg("Referrer not found")
		return nil
	}
	if err != nil {
		return err
	}

	locked, err := tx.LockUsers(ctx, ref.ID)
	if err != nil {
		return err
	}
	ref = locked[ref.ID]
	ref.ReferralCount++
	if err := ledger.Adjust(ctx, tx, ref, r.opts.ReferralBonus); err != nil {
		return err
	}

	refID := ref.ID
	u.ReferredBy = &refID
	r.log.Info().
		Int64("telegram_id", u.TelegramID).
		Int64("referrer_id", ref.ID).
		Int64("bonus", r.opts.ReferralBonus).
		Msg("Referral attributed")
	return nil
}

// applyProfile copies the latest profile fields and role onto u and reports whether anything changed.
func (r *Resolver) applyProfile(u *domain.User, p verifier.Profile) bool {
	changed := false
	if u.Username != p.Username {
		u.Username = p.Username
		changed = true
	}
	if u.AvatarURL != p.AvatarURL {
		u.AvatarURL = p.AvatarURL
		changed = true
	}
	if r.opts.IsAdmin(p.TelegramID) && u.Role != domain.RoleAdmin {
		u.Role = domain.RoleAdmin
		changed = true
	}
	return changed
}

func (r *Resolver) unresolvable(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	r.log.Error().Err(err).Msg("Failed to resolve user")
	return apperrors.NewUserNotResolvableError(err)
}
