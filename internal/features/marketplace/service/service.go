// Package service owns item ownership: shop purchases, auctions, transfers, pins and sell-back.
//
// Every mutating call runs in one store transaction. Rows are locked in a fixed order
// (auction, then users by id, then item) so concurrent calls cannot deadlock.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/ledger"
)

type Options struct {
	SellBackPercent int64
	TransferFee     int64
}

// Receipt is returned by every operation that may move currency.
type Receipt struct {
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
}

type Service struct {
	store domain.Store
	opts  Options
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(store domain.Store, opts Options) *Service {
	return &Service{store: store, opts: opts, now: time.Now, log: logger.Component("marketplace")}
}

// Shop lists items nobody owns yet.
func (s *Service) Shop(ctx context.Context) ([]*domain.Item, error) {
	var out []*domain.Item
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.UnownedItems(ctx)
		return err
	})
	if err != nil {
		return nil, storeErr("list shop", err)
	}
	return out, nil
}

// MyItems lists the caller's items that are not currently up for auction.
func (s *Service) MyItems(ctx context.Context, userID int64) ([]*domain.Item, error) {
	var out []*domain.Item
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.ItemsOwnedBy(ctx, userID, true)
		return err
	})
	if err != nil {
		return nil, storeErr("list owned items", err)
	}
	return out, nil
}

func (s *Service) Buy(ctx context.Context, userID, itemID int64) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		buyer, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.OwnerID != nil {
			return apperrors.NewAlreadyOwnedError(itemID)
		}
		if err := ledger.Adjust(ctx, tx, buyer, -item.Price); err != nil {
			return err
		}
		if err := tx.UpdateItemOwner(ctx, itemID, &buyer.ID); err != nil {
			return err
		}
		r = &Receipt{Message: "NFT purchased", NewBalance: buyer.Balance}
		return nil
	})
	if err != nil {
		return nil, storeErr("buy item", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("nft_id", itemID).Msg("Item bought from shop")
	return r, nil
}

func (s *Service) Pin(ctx context.Context, userID, itemID int64) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.OwnedBy(userID) {
			return apperrors.NewNotOwnerError(itemID)
		}
		u.PinnedItemID = &item.ID
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		r = &Receipt{Message: "NFT pinned", NewBalance: u.Balance}
		return nil
	})
	if err != nil {
		return nil, storeErr("pin item", err)
	}
	return r, nil
}

// Sell returns the item to the system for a fixed share of its list price. The item is destroyed.
func (s *Service) Sell(ctx context.Context, userID, itemID int64) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.OwnedBy(userID) {
			return apperrors.NewNotOwnerError(itemID)
		}
		if _, err := tx.ActiveAuctionForItem(ctx, itemID); err == nil {
			return apperrors.NewHasActiveAuctionError(itemID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		payout := item.Price * s.opts.SellBackPercent / 100
		u.Unpin(itemID)
		if err := ledger.Adjust(ctx, tx, u, payout); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		r = &Receipt{Message: fmt.Sprintf("NFT sold for %d coins", payout), NewBalance: u.Balance}
		return nil
	})
	if err != nil {
		return nil, storeErr("sell item", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("nft_id", itemID).Msg("Item sold back")
	return r, nil
}

// Transfer hands the item to the user with recipientUsername for a fixed fee paid by the sender.
func (s *Service) Transfer(ctx context.Context, userID, itemID int64, recipientUsername string) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		recipient, err := tx.UserByUsername(ctx, recipientUsername)
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewRecipientNotFoundError(recipientUsername)
		}
		if err != nil {
			return err
		}

		users, err := tx.LockUsers(ctx, userID, recipient.ID)
		if err != nil {
			return userErr(userID, err)
		}
		sender := users[userID]

		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.OwnedBy(userID) {
			return apperrors.NewNotOwnerError(itemID)
		}
		if sender.Balance < s.opts.TransferFee {
			return apperrors.NewInsufficientFundsError(sender.Balance, s.opts.TransferFee)
		}
		if sender.ID == recipient.ID {
			return apperrors.NewSelfTransferError()
		}
		if _, err := tx.ActiveAuctionForItem(ctx, itemID); err == nil {
			return apperrors.NewHasActiveAuctionError(itemID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		sender.Unpin(itemID)
		if err := ledger.Adjust(ctx, tx, sender, -s.opts.TransferFee); err != nil {
			return err
		}
		if err := tx.UpdateItemOwner(ctx, itemID, &recipient.ID); err != nil {
			return err
		}
		r = &Receipt{
			Message:    fmt.Sprintf("NFT transferred to %s", recipient.DisplayName()),
			NewBalance: sender.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("transfer item", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("nft_id", itemID).Str("recipient", recipientUsername).Msg("Item transferred")
	return r, nil
}

func (s *Service) CreateAuction(ctx context.Context, userID, itemID, price int64) (*domain.Auction, error) {
	var a *domain.Auction
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !item.OwnedBy(userID) {
			return apperrors.NewNotOwnerError(itemID)
		}
		if price <= 0 {
			return apperrors.NewInvalidPriceError(price)
		}
		if _, err := tx.ActiveAuctionForItem(ctx, itemID); err == nil {
			return apperrors.NewAlreadyListedError(itemID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		a = &domain.Auction{
			ItemID:    itemID,
			SellerID:  userID,
			Price:     price,
			Status:    domain.AuctionActive,
			CreatedAt: s.now(),
		}
		if err := tx.CreateAuction(ctx, a); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return apperrors.NewAlreadyListedError(itemID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("create auction", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("nft_id", itemID).Int64("price", price).Msg("Auction created")
	return a, nil
}

func (s *Service) Auctions(ctx context.Context) ([]*domain.AuctionListing, error) {
	var out []*domain.AuctionListing
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.ActiveAuctions(ctx)
		return err
	})
	if err != nil {
		return nil, storeErr("list auctions", err)
	}
	return out, nil
}

func (s *Service) MyAuctions(ctx context.Context, userID int64) ([]*domain.AuctionListing, error) {
	var out []*domain.AuctionListing
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = tx.AuctionsBySeller(ctx, userID)
		return err
	})
	if err != nil {
		return nil, storeErr("list own auctions", err)
	}
	return out, nil
}

// BuyAuction settles an active auction: the buyer pays the seller and takes the item.
func (s *Service) BuyAuction(ctx context.Context, userID, auctionID int64) (*Receipt, error) {
	var r *Receipt
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		a, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if !a.Active() {
			return apperrors.NewNotActiveError(auctionID)
		}
		if a.SellerID == userID {
			return apperrors.NewSelfTradeError()
		}

		users, err := tx.LockUsers(ctx, userID, a.SellerID)
		if err != nil {
			return userErr(userID, err)
		}
		buyer, seller := users[userID], users[a.SellerID]

		item, err := lockItem(ctx, tx, a.ItemID)
		if err != nil {
			return err
		}
		if !item.OwnedBy(seller.ID) {
			// ownership moved without closing the auction; refuse to settle
			return apperrors.NewNotActiveError(auctionID)
		}

		if err := ledger.Adjust(ctx, tx, buyer, -a.Price); err != nil {
			return err
		}
		seller.Unpin(item.ID)
		if err := ledger.Adjust(ctx, tx, seller, a.Price); err != nil {
			return err
		}
		if err := tx.UpdateItemOwner(ctx, item.ID, &buyer.ID); err != nil {
			return err
		}
		a.Close(domain.AuctionSold, &buyer.ID, s.now())
		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}
		r = &Receipt{Message: "NFT bought at auction", NewBalance: buyer.Balance}
		return nil
	})
	if err != nil {
		return nil, storeErr("buy auction", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("auction_id", auctionID).Msg("Auction settled")
	return r, nil
}

func (s *Service) CancelAuction(ctx context.Context, userID, auctionID int64) (*Receipt, error) {
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		a, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.SellerID != userID {
			return apperrors.NewNotSellerError(auctionID)
		}
		if !a.Active() {
			return apperrors.NewNotActiveError(auctionID)
		}
		a.Close(domain.AuctionCancelled, nil, s.now())
		return tx.UpdateAuction(ctx, a)
	})
	if err != nil {
		return nil, storeErr("cancel auction", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("auction_id", auctionID).Msg("Auction cancelled")
	return &Receipt{Message: "Auction cancelled, NFT returned"}, nil
}

func lockUser(ctx context.Context, tx domain.Tx, userID int64) (*domain.User, error) {
	users, err := tx.LockUsers(ctx, userID)
	if err != nil {
		return nil, userErr(userID, err)
	}
	return users[userID], nil
}

func lockItem(ctx context.Context, tx domain.Tx, itemID int64) (*domain.Item, error) {
	item, err := tx.LockItem(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewItemNotFoundError(itemID)
	}
	return item, err
}

func lockAuction(ctx context.Context, tx domain.Tx, auctionID int64) (*domain.Auction, error) {
	a, err := tx.LockAuction(ctx, auctionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewAuctionNotFoundError(auctionID)
	}
	return a, err
}

func userErr(userID int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewUserNotFoundError(userID)
	}
	return err
}

// storeErr passes business errors through and hides everything else behind a database error.
func storeErr(op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.NewDatabaseError(op, err)
}
