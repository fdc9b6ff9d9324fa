package postgres

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/zagip/zagip-game/internal/domain"
)

const userColumns = `id, telegram_id, username, avatar_url, balance, role, pinned_nft_id,
	referred_by, referral_count, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.AvatarURL, &u.Balance, &role,
		&u.PinnedItemID, &u.ReferredBy, &u.ReferralCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*domain.User, error) {
	defer rows.Close()
	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (t *pgTx) UserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
}

func (t *pgTx) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 ORDER BY id LIMIT 1`, username))
}

func (t *pgTx) LockUsers(ctx context.Context, ids ...int64) (map[int64]*domain.User, error) {
	uniq := make(map[int64]struct{}, len(ids))
	sorted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.tx.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, mapErr(err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) != len(sorted) {
		return nil, domain.ErrNotFound
	}

	out := make(map[int64]*domain.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *domain.User) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, avatar_url, balance, role, pinned_nft_id, referred_by, referral_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		u.TelegramID, u.Username, u.AvatarURL, u.Balance, string(u.Role), u.PinnedItemID, u.ReferredBy, u.ReferralCount,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

func (t *pgTx) UpdateUser(ctx context.Context, u *domain.User) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE users
		SET username = $2, avatar_url = $3, balance = $4, role = $5, pinned_nft_id = $6,
			referred_by = $7, referral_count = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Username, u.AvatarURL, u.Balance, string(u.Role), u.PinnedItemID, u.ReferredBy, u.ReferralCount,
	).Scan(&u.UpdatedAt)
	return mapErr(err)
}

func (t *pgTx) ClearPinnedItem(ctx context.Context, itemID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE users SET pinned_nft_id = NULL, updated_at = NOW() WHERE pinned_nft_id = $1`, itemID)
	return mapErr(err)
}

func (t *pgTx) TopUsersByBalance(ctx context.Context, limit int) ([]*domain.User, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY balance DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectUsers(rows)
}

func (t *pgTx) UsersReferredBy(ctx context.Context, userID int64) ([]*domain.User, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE referred_by = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectUsers(rows)
}
