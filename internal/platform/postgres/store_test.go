package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zagip/zagip-game/internal/common/config"
	"github.com/zagip/zagip-game/internal/domain"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), domain.ErrNotFound)

	dup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_telegram_id_key"}
	err := mapErr(dup)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Contains(t, err.Error(), "users_telegram_id_key")

	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other))
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version)
		assert.NotEmpty(t, m.sql)
	}
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := &config.Config{}
	cfg.Postgres.DSN = dsn
	cfg.Postgres.MaxConns = 4
	cfg.Postgres.MinConns = 1

	pool, err := NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))

	s := NewStore(pool)
	tgID := int64(9_000_000_000) + int64(os.Getpid())

	u := &domain.User{TelegramID: tgID, Username: "integration", Role: domain.RoleUser, Balance: 100}
	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error { return tx.CreateUser(ctx, u) }))

	err = s.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateUser(ctx, &domain.User{TelegramID: tgID, Role: domain.RoleUser})
	})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error {
		locked, err := tx.LockUsers(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), locked[u.ID].Balance)

		item := &domain.Item{Name: "integration", Price: 10, OwnerID: &u.ID}
		require.NoError(t, tx.CreateItems(ctx, []*domain.Item{item}))
		require.NoError(t, tx.CreateAuction(ctx, &domain.Auction{ItemID: item.ID, SellerID: u.ID, Price: 5, Status: domain.AuctionActive}))

		listed, err := tx.ItemsOwnedBy(ctx, u.ID, true)
		require.NoError(t, err)
		assert.Empty(t, listed)

		return tx.DeleteItem(ctx, item.ID)
	}))
}
