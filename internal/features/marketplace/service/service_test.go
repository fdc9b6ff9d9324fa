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

type world struct {
	t      *testing.T
	store  *memory.Store
	svc    *Service
	nextTG int64
}

func newWorld(t *testing.T) *world {
	store := memory.NewStore()
	return &world{
		t:     t,
		store: store,
		svc:   NewService(store, Options{SellBackPercent: 75, TransferFee: 100}),
	}
}

func (w *world) tx(fn func(ctx context.Context, tx domain.Tx) error) {
	w.t.Helper()
	ctx := context.Background()
	require.NoError(w.t, w.store.InTx(ctx, func(tx domain.Tx) error { return fn(ctx, tx) }))
}

func (w *world) user(username string, balance int64) int64 {
	w.t.Helper()
	w.nextTG++
	u := &domain.User{TelegramID: w.nextTG, Username: username, Balance: balance, Role: domain.RoleUser}
	w.tx(func(ctx context.Context, tx domain.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	return u.ID
}

func (w *world) item(price int64, owner *int64) int64 {
	w.t.Helper()
	it := &domain.Item{Name: "Gem", Price: price, OwnerID: owner}
	w.tx(func(ctx context.Context, tx domain.Tx) error {
		return tx.CreateItems(ctx, []*domain.Item{it})
	})
	return it.ID
}

func (w *world) getUser(id int64) *domain.User {
	w.t.Helper()
	var u *domain.User
	w.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		u, err = tx.UserByID(ctx, id)
		return err
	})
	return u
}

func (w *world) getItem(id int64) (*domain.Item, error) {
	var it *domain.Item
	err := w.store.InTx(context.Background(), func(tx domain.Tx) error {
		var err error
		it, err = tx.ItemByID(context.Background(), id)
		return err
	})
	return it, err
}

func (w *world) pin(userID, itemID int64) {
	w.t.Helper()
	_, err := w.svc.Pin(context.Background(), userID, itemID)
	require.NoError(w.t, err)
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

func ptr(v int64) *int64 { return &v }

func TestBuyFromShop(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	buyer := w.user("buyer", 1000)
	item := w.item(400, nil)

	r, err := w.svc.Buy(ctx, buyer, item)
	require.NoError(t, err)
	assert.Equal(t, int64(600), r.NewBalance)

	it, err := w.getItem(item)
	require.NoError(t, err)
	assert.True(t, it.OwnedBy(buyer))

	shop, err := w.svc.Shop(ctx)
	require.NoError(t, err)
	assert.Empty(t, shop)
}

func TestBuyFailures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	poor := w.user("poor", 10)
	rich := w.user("rich", 1000)
	owned := w.item(100, &rich)
	pricey := w.item(500, nil)

	_, err := w.svc.Buy(ctx, poor, owned)
	assertCode(t, err, apperrors.ErrCodeAlreadyOwned)

	_, err = w.svc.Buy(ctx, poor, pricey)
	assertCode(t, err, apperrors.ErrCodeInsufficientFunds)
	assert.Equal(t, int64(10), w.getUser(poor).Balance)
	it, _ := w.getItem(pricey)
	assert.Nil(t, it.OwnerID)

	_, err = w.svc.Buy(ctx, poor, 9999)
	assertCode(t, err, apperrors.ErrCodeItemNotFound)
}

func TestConcurrentShopPurchaseHasOneWinner(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	item := w.item(100, nil)
	buyers := make([]int64, 8)
	for i := range buyers {
		buyers[i] = w.user("b"+string(rune('a'+i)), 1000)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, b int64) {
			defer wg.Done()
			_, errs[i] = w.svc.Buy(ctx, b, item)
		}(i, b)
	}
	wg.Wait()

	wins, total := 0, int64(0)
	for i, err := range errs {
		if err == nil {
			wins++
		} else {
			assertCode(t, err, apperrors.ErrCodeAlreadyOwned)
		}
		total += w.getUser(buyers[i]).Balance
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(8*1000-100), total)
}

func TestAuctionScenario(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 1000)
	b := w.user("bob", 1000)
	x := w.item(999, &a)
	w.pin(a, x)

	auction, err := w.svc.CreateAuction(ctx, a, x, 400)
	require.NoError(t, err)
	assert.True(t, auction.Active())

	mine, err := w.svc.MyItems(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, mine, "listed items are hidden from the owner's collection")

	listings, err := w.svc.Auctions(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, x, listings[0].Item.ID)

	r, err := w.svc.BuyAuction(ctx, b, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), r.NewBalance)

	alice, bob := w.getUser(a), w.getUser(b)
	assert.Equal(t, int64(1400), alice.Balance)
	assert.Equal(t, int64(600), bob.Balance)
	assert.Nil(t, alice.PinnedItemID)

	it, err := w.getItem(x)
	require.NoError(t, err)
	assert.True(t, it.OwnedBy(b))

	listings, err = w.svc.Auctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, listings)

	history, err := w.svc.MyAuctions(ctx, a)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.AuctionSold, history[0].Status)
	require.NotNil(t, history[0].BuyerID)
	assert.Equal(t, b, *history[0].BuyerID)

	_, err = w.svc.BuyAuction(ctx, b, auction.ID)
	assertCode(t, err, apperrors.ErrCodeNotActive)
}

func TestCreateAuctionFailures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	b := w.user("bob", 0)
	x := w.item(100, &a)

	_, err := w.svc.CreateAuction(ctx, b, x, 10)
	assertCode(t, err, apperrors.ErrCodeNotOwner)

	_, err = w.svc.CreateAuction(ctx, a, x, 0)
	assertCode(t, err, apperrors.ErrCodeInvalidPrice)

	_, err = w.svc.CreateAuction(ctx, a, x, -5)
	assertCode(t, err, apperrors.ErrCodeInvalidPrice)

	_, err = w.svc.CreateAuction(ctx, a, x, 10)
	require.NoError(t, err)

	_, err = w.svc.CreateAuction(ctx, a, x, 20)
	assertCode(t, err, apperrors.ErrCodeAlreadyListed)
}

func TestBuyAuctionFailures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	b := w.user("bob", 50)
	x := w.item(100, &a)

	auction, err := w.svc.CreateAuction(ctx, a, x, 100)
	require.NoError(t, err)

	_, err = w.svc.BuyAuction(ctx, a, auction.ID)
	assertCode(t, err, apperrors.ErrCodeSelfTrade)

	_, err = w.svc.BuyAuction(ctx, b, auction.ID)
	assertCode(t, err, apperrors.ErrCodeInsufficientFunds)

	// nothing moved
	assert.Equal(t, int64(0), w.getUser(a).Balance)
	assert.Equal(t, int64(50), w.getUser(b).Balance)
	it, _ := w.getItem(x)
	assert.True(t, it.OwnedBy(a))

	_, err = w.svc.BuyAuction(ctx, b, 9999)
	assertCode(t, err, apperrors.ErrCodeAuctionNotFound)
}

func TestConcurrentAuctionBuyHasOneWinner(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	seller := w.user("seller", 0)
	x := w.item(100, &seller)
	auction, err := w.svc.CreateAuction(ctx, seller, x, 300)
	require.NoError(t, err)

	buyers := []int64{w.user("one", 500), w.user("two", 500), w.user("three", 500)}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, b := range buyers {
		wg.Add(1)
		go func(b int64) {
			defer wg.Done()
			if _, err := w.svc.BuyAuction(ctx, b, auction.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(300), w.getUser(seller).Balance)
}

func TestCancelAuction(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	b := w.user("bob", 0)
	x := w.item(100, &a)

	auction, err := w.svc.CreateAuction(ctx, a, x, 100)
	require.NoError(t, err)

	_, err = w.svc.CancelAuction(ctx, b, auction.ID)
	assertCode(t, err, apperrors.ErrCodeNotSeller)

	_, err = w.svc.CancelAuction(ctx, a, auction.ID)
	require.NoError(t, err)

	_, err = w.svc.CancelAuction(ctx, a, auction.ID)
	assertCode(t, err, apperrors.ErrCodeNotActive)

	it, _ := w.getItem(x)
	assert.True(t, it.OwnedBy(a))

	mine, err := w.svc.MyItems(ctx, a)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	// relisting after cancel opens a fresh auction
	again, err := w.svc.CreateAuction(ctx, a, x, 150)
	require.NoError(t, err)
	assert.NotEqual(t, auction.ID, again.ID)
}

func TestSellBack(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	x := w.item(1000, &a)
	w.pin(a, x)

	r, err := w.svc.Sell(ctx, a, x)
	require.NoError(t, err)
	assert.Equal(t, int64(750), r.NewBalance)
	assert.Equal(t, "NFT sold for 750 coins", r.Message)

	alice := w.getUser(a)
	assert.Equal(t, int64(750), alice.Balance)
	assert.Nil(t, alice.PinnedItemID)

	_, err = w.getItem(x)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = w.svc.Buy(ctx, a, x)
	assertCode(t, err, apperrors.ErrCodeItemNotFound)
	_, err = w.svc.CreateAuction(ctx, a, x, 10)
	assertCode(t, err, apperrors.ErrCodeItemNotFound)
}

func TestSellBackTruncates(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	x := w.item(333, &a)

	r, err := w.svc.Sell(ctx, a, x)
	require.NoError(t, err)
	assert.Equal(t, int64(249), r.NewBalance)
}

func TestSellFailures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	b := w.user("bob", 0)
	x := w.item(100, &a)

	_, err := w.svc.Sell(ctx, b, x)
	assertCode(t, err, apperrors.ErrCodeNotOwner)

	_, err = w.svc.CreateAuction(ctx, a, x, 10)
	require.NoError(t, err)
	_, err = w.svc.Sell(ctx, a, x)
	assertCode(t, err, apperrors.ErrCodeHasActiveAuction)
	assert.Equal(t, int64(0), w.getUser(a).Balance)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 150)
	b := w.user("bob", 0)
	x := w.item(100, &a)
	w.pin(a, x)

	r, err := w.svc.Transfer(ctx, a, x, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(50), r.NewBalance)
	assert.Equal(t, "NFT transferred to bob", r.Message)

	it, _ := w.getItem(x)
	assert.True(t, it.OwnedBy(b))
	assert.Nil(t, w.getUser(a).PinnedItemID)
	assert.Equal(t, int64(0), w.getUser(b).Balance)
}

func TestTransferFailures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 1000)
	broke := w.user("broke", 99)
	w.user("bob", 0)
	x := w.item(100, &a)
	y := w.item(100, &broke)

	_, err := w.svc.Transfer(ctx, a, x, "nobody")
	assertCode(t, err, apperrors.ErrCodeRecipientNotFound)

	_, err = w.svc.Transfer(ctx, a, y, "bob")
	assertCode(t, err, apperrors.ErrCodeNotOwner)

	_, err = w.svc.Transfer(ctx, broke, y, "bob")
	assertCode(t, err, apperrors.ErrCodeInsufficientFunds)

	_, err = w.svc.Transfer(ctx, a, x, "alice")
	assertCode(t, err, apperrors.ErrCodeSelfTransfer)

	_, err = w.svc.CreateAuction(ctx, a, x, 10)
	require.NoError(t, err)
	_, err = w.svc.Transfer(ctx, a, x, "bob")
	assertCode(t, err, apperrors.ErrCodeHasActiveAuction)

	assert.Equal(t, int64(1000), w.getUser(a).Balance)
	assert.Equal(t, int64(99), w.getUser(broke).Balance)
}

func TestPin(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.user("alice", 0)
	b := w.user("bob", 0)
	x := w.item(100, &a)

	_, err := w.svc.Pin(ctx, b, x)
	assertCode(t, err, apperrors.ErrCodeNotOwner)

	_, err = w.svc.Pin(ctx, a, x)
	require.NoError(t, err)
	assert.Equal(t, ptr(x), w.getUser(a).PinnedItemID)

	_, err = w.svc.Pin(ctx, a, 12345)
	assertCode(t, err, apperrors.ErrCodeItemNotFound)
}

func TestUnknownCaller(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x := w.item(100, nil)

	_, err := w.svc.Buy(ctx, 777, x)
	assertCode(t, err, apperrors.ErrCodeUserNotFound)
}
