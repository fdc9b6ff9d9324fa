package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the single authoritative data store. InTx runs fn as one all-or-nothing
// transaction: when fn returns an error nothing it did is visible afterwards.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// Tx is the set of row operations available inside a transaction. Lock* methods take
// row locks held until the transaction ends. Getters return ErrNotFound for missing rows.
type Tx interface {
	UserTx
	ItemTx
	AuctionTx
	RewardTx
}

type UserTx interface {
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	// LockUsers locks rows in ascending id order and fails with ErrNotFound if any id is missing.
	LockUsers(ctx context.Context, ids ...int64) (map[int64]*User, error)
	// CreateUser assigns u.ID; returns ErrDuplicate when the telegram id already exists.
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	ClearPinnedItem(ctx context.Context, itemID int64) error
	TopUsersByBalance(ctx context.Context, limit int) ([]*User, error)
	UsersReferredBy(ctx context.Context, userID int64) ([]*User, error)
}

type ItemTx interface {
	ItemByID(ctx context.Context, id int64) (*Item, error)
	LockItem(ctx context.Context, id int64) (*Item, error)
	CreateItems(ctx context.Context, items []*Item) error
	UpdateItemOwner(ctx context.Context, itemID int64, ownerID *int64) error
	// DeleteItem removes the item together with every auction that references it.
	DeleteItem(ctx context.Context, id int64) error
	CountItemsWithImage(ctx context.Context, imageURL string) (int, error)
	UnownedItems(ctx context.Context) ([]*Item, error)
	ItemsOwnedBy(ctx context.Context, userID int64, excludeListed bool) ([]*Item, error)
}

type AuctionTx interface {
	CreateAuction(ctx context.Context, a *Auction) error
	LockAuction(ctx context.Context, id int64) (*Auction, error)
	ActiveAuctionForItem(ctx context.Context, itemID int64) (*Auction, error)
	UpdateAuction(ctx context.Context, a *Auction) error
	ActiveAuctions(ctx context.Context) ([]*AuctionListing, error)
	AuctionsBySeller(ctx context.Context, sellerID int64) ([]*AuctionListing, error)
}

type RewardTx interface {
	LockCodeByValue(ctx context.Context, code string) (*RedeemableCode, error)
	CreateCode(ctx context.Context, c *RedeemableCode) error
	UpdateCodeUses(ctx context.Context, codeID int64, currentUses int) error
	Codes(ctx context.Context) ([]*RedeemableCode, error)
	DeleteCode(ctx context.Context, id int64) error
	HasCodeUsage(ctx context.Context, codeID, userID int64) (bool, error)
	InsertCodeUsage(ctx context.Context, u *CodeUsage) error
	CountCodeUsagesByUser(ctx context.Context, userID int64) (int, error)

	TaskByID(ctx context.Context, id int64) (*Task, error)
	CreateTask(ctx context.Context, t *Task) error
	Tasks(ctx context.Context, activeOnly bool) ([]*Task, error)
	DeleteTask(ctx context.Context, id int64) error
	HasTaskCompletion(ctx context.Context, taskID, userID int64) (bool, error)
	InsertTaskCompletion(ctx context.Context, c *TaskCompletion) error
	CountTaskCompletionsByUser(ctx context.Context, userID int64) (int, error)
}
