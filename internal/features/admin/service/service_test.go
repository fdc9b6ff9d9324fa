package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/platform/memory"
	"github.com/zagip/zagip-game/internal/platform/objectstore"
)

type fixture struct {
	store   *memory.Store
	artwork *objectstore.Memory
	svc     *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	artwork := objectstore.NewMemory("/api/uploads")
	return &fixture{store: store, artwork: artwork, svc: NewService(store, artwork)}
}

func (f *fixture) user(t *testing.T, tg int64, username string, balance int64) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: tg, Username: username, Balance: balance, Role: domain.RoleUser}
	require.NoError(t, f.store.InTx(context.Background(), func(tx domain.Tx) error {
		return tx.CreateUser(context.Background(), u)
	}))
	return u
}

func (f *fixture) items(t *testing.T) []*domain.Item {
	t.Helper()
	var out []*domain.Item
	require.NoError(t, f.store.InTx(context.Background(), func(tx domain.Tx) error {
		var err error
		out, err = tx.UnownedItems(context.Background())
		return err
	}))
	return out
}

var png = Image{Filename: "art.png", ContentType: "image/png", Body: []byte{0x89, 'P', 'N', 'G'}}

func dragon() domain.ItemDefinition {
	return domain.ItemDefinition{
		Name:           "Dragon",
		Description:    "Breathes fire",
		Price:          500,
		GradientColor1: "#ff0000",
		GradientColor2: "#000000",
	}
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^CODE[0-9A-F]{8}$`)
	a, b := GenerateCode(), GenerateCode()
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestCreateCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	c, err := f.svc.CreateCode(ctx, CodeInput{Reward: 50, MaxUses: 3})
	require.NoError(t, err)
	assert.True(t, c.Active)
	assert.Regexp(t, `^CODE`, c.Code)

	_, err = f.svc.CreateCode(ctx, CodeInput{Code: "SPRING", Reward: 50, MaxUses: 1})
	require.NoError(t, err)
	_, err = f.svc.CreateCode(ctx, CodeInput{Code: "SPRING", Reward: 10, MaxUses: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateCodeValue), "%v", err)

	_, err = f.svc.CreateCode(ctx, CodeInput{Code: "bad code", Reward: 10, MaxUses: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	_, err = f.svc.CreateCode(ctx, CodeInput{Reward: 0, MaxUses: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	_, err = f.svc.CreateCode(ctx, CodeInput{Reward: 5, MaxUses: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	codes, err := f.svc.Codes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 2)

	require.NoError(t, f.svc.DeleteCode(ctx, c.ID))
	err = f.svc.DeleteCode(ctx, c.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	task, err := f.svc.CreateTask(ctx, TaskInput{Title: " Join channel ", Link: "https://t.me/x", Reward: 20})
	require.NoError(t, err)
	assert.Equal(t, "Join channel", task.Title)
	assert.True(t, task.Active)

	_, err = f.svc.CreateTask(ctx, TaskInput{Title: "", Reward: 20})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	tasks, err := f.svc.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))
	assert.True(t, apperrors.HasCode(f.svc.DeleteTask(ctx, task.ID), apperrors.ErrCodeNotFound))
}

func TestMintSharesOneImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	items, err := f.svc.MintItems(ctx, dragon(), 5, png)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, 1, f.artwork.Len())

	url := items[0].ImageURL
	ids := map[int64]bool{}
	for _, it := range items {
		assert.Equal(t, url, it.ImageURL)
		assert.Nil(t, it.OwnerID)
		ids[it.ID] = true
	}
	assert.Len(t, ids, 5)
	assert.Len(t, f.items(t), 5)
}

func TestMintRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	bad := dragon()
	bad.GradientColor1 = "red"
	_, err := f.svc.MintItems(ctx, bad, 1, png)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = f.svc.MintItems(ctx, dragon(), 0, png)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = f.svc.MintItems(ctx, dragon(), 1, Image{Filename: "a.pdf", ContentType: "application/pdf", Body: []byte("x")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = f.svc.MintItems(ctx, dragon(), 1, Image{Filename: "a.png", ContentType: "image/png"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	assert.Equal(t, 0, f.artwork.Len())
}

type failingStore struct{ domain.Store }

func (failingStore) InTx(context.Context, func(domain.Tx) error) error {
	return errors.New("connection reset")
}

func TestMintRemovesArtworkWhenInsertFails(t *testing.T) {
	artwork := objectstore.NewMemory("/api/uploads")
	svc := NewService(failingStore{}, artwork)

	_, err := svc.MintItems(context.Background(), dragon(), 2, png)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
	assert.Equal(t, 0, artwork.Len())
}

func TestDeleteItemKeepsSharedArtwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, 1, "owner_one", 0)

	items, err := f.svc.MintItems(ctx, dragon(), 2, png)
	require.NoError(t, err)

	require.NoError(t, f.store.InTx(ctx, func(tx domain.Tx) error {
		if err := tx.UpdateItemOwner(ctx, items[0].ID, &owner.ID); err != nil {
			return err
		}
		owner.PinnedItemID = &items[0].ID
		return tx.UpdateUser(ctx, owner)
	}))

	require.NoError(t, f.svc.DeleteItem(ctx, items[0].ID))
	assert.Equal(t, 1, f.artwork.Len())

	require.NoError(t, f.store.InTx(ctx, func(tx domain.Tx) error {
		u, err := tx.UserByID(ctx, owner.ID)
		if err != nil {
			return err
		}
		assert.Nil(t, u.PinnedItemID)
		return nil
	}))

	require.NoError(t, f.svc.DeleteItem(ctx, items[1].ID))
	assert.Equal(t, 0, f.artwork.Len())

	err = f.svc.DeleteItem(ctx, items[1].ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeItemNotFound))
}

func TestSetBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.user(t, 7, "whale_01", 100)

	u, err := f.svc.SetBalance(ctx, "@whale_01", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), u.Balance)

	u, err = f.svc.SetBalance(ctx, "whale_01", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)

	_, err = f.svc.SetBalance(ctx, "whale_01", -1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	_, err = f.svc.SetBalance(ctx, "nobody_here", 10)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}
