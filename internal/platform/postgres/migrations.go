package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zagip/zagip-game/internal/common/logger"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
CREATE TABLE users (
	id             BIGSERIAL PRIMARY KEY,
	telegram_id    BIGINT NOT NULL,
	username       TEXT NOT NULL DEFAULT '',
	avatar_url     TEXT NOT NULL DEFAULT '',
	balance        BIGINT NOT NULL DEFAULT 0,
	role           TEXT NOT NULL DEFAULT 'USER',
	pinned_nft_id  BIGINT,
	referred_by    BIGINT REFERENCES users(id),
	referral_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_telegram_id_key UNIQUE (telegram_id),
	CONSTRAINT users_balance_non_negative CHECK (balance >= 0),
	CONSTRAINT users_role_check CHECK (role IN ('USER', 'ADMIN'))
);
CREATE INDEX users_username_idx ON users (username);
CREATE INDEX users_balance_idx ON users (balance DESC);
CREATE INDEX users_referred_by_idx ON users (referred_by);

CREATE TABLE nfts (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	price           BIGINT NOT NULL,
	gradient_color1 TEXT NOT NULL DEFAULT '',
	gradient_color2 TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	owner_id        BIGINT REFERENCES users(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX nfts_owner_idx ON nfts (owner_id);

ALTER TABLE users
	ADD CONSTRAINT users_pinned_nft_fk FOREIGN KEY (pinned_nft_id) REFERENCES nfts(id) ON DELETE SET NULL;

CREATE TABLE auctions (
	id         BIGSERIAL PRIMARY KEY,
	nft_id     BIGINT NOT NULL REFERENCES nfts(id) ON DELETE CASCADE,
	seller_id  BIGINT NOT NULL REFERENCES users(id),
	buyer_id   BIGINT REFERENCES users(id),
	price      BIGINT NOT NULL CHECK (price > 0),
	status     TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at  TIMESTAMPTZ
);
CREATE UNIQUE INDEX auctions_one_active_per_nft ON auctions (nft_id) WHERE status = 'ACTIVE';
CREATE INDEX auctions_seller_idx ON auctions (seller_id);
`},
	{2, `
CREATE TABLE codes (
	id           BIGSERIAL PRIMARY KEY,
	code         TEXT NOT NULL UNIQUE,
	reward       BIGINT NOT NULL,
	max_uses     INTEGER NOT NULL,
	current_uses INTEGER NOT NULL DEFAULT 0,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT codes_uses_check CHECK (current_uses <= max_uses)
);

CREATE TABLE code_usages (
	code_id BIGINT NOT NULL REFERENCES codes(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(id),
	used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (code_id, user_id)
);
CREATE INDEX code_usages_user_idx ON code_usages (user_id);

CREATE TABLE tasks (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	reward      BIGINT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE task_completions (
	task_id      BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	user_id      BIGINT NOT NULL REFERENCES users(id),
	completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (task_id, user_id)
);
CREATE INDEX task_completions_user_idx ON task_completions (user_id);
`},
}

// Migrate applies every pending migration, each in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := applyMigration(ctx, pool, m)
		if err != nil {
			return err
		}
		if applied {
			logger.Info().Int("version", m.version).Msg("Migration applied")
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback(ctx)

	// serialize concurrent starters on the same database
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(727274)"); err != nil {
		return false, fmt.Errorf("failed to lock migrations: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", m.version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return false, fmt.Errorf("failed to apply migration %d: %w", m.version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return false, fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	return true, tx.Commit(ctx)
}
